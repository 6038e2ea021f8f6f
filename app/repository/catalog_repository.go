package repository

import (
	"encoding/json"
	"log"
	"time"

	"github.com/auroracademy/backend/app/models"
	"github.com/auroracademy/backend/internal/pkg/cache"
	"gorm.io/gorm"
)

const (
	publishedCoursesCacheKey = "catalog:courses:published"
	publishedBundlesCacheKey = "catalog:bundles:published"
	catalogCacheTTL          = 60 * time.Second
)

// catalogRepository implements CatalogRepository. Published listings are the
// hottest read path and are served from Redis with a short TTL; entitlement
// checks never go through here.
type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new catalog repository instance
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// GetCourse retrieves a course by ID
func (r *catalogRepository) GetCourse(id uint) (*models.Course, error) {
	var course models.Course
	err := r.db.First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetBundle retrieves a bundle with its course set preloaded
func (r *catalogRepository) GetBundle(id uint) (*models.Bundle, error) {
	var bundle models.Bundle
	err := r.db.Preload("Courses").First(&bundle, id).Error
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ListPublishedCourses returns all published courses, cache-first
func (r *catalogRepository) ListPublishedCourses() ([]models.Course, error) {
	if cached, err := cache.Get(publishedCoursesCacheKey); err == nil && cached != "" {
		var courses []models.Course
		if err := json.Unmarshal([]byte(cached), &courses); err == nil {
			return courses, nil
		}
		// Corrupt entry, drop it and fall through to the database.
		_ = cache.Delete(publishedCoursesCacheKey)
	}

	var courses []models.Course
	if err := r.db.Where("published = ?", true).Order("title").Find(&courses).Error; err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(courses); err == nil {
		if err := cache.Set(publishedCoursesCacheKey, payload, catalogCacheTTL); err != nil {
			log.Printf("catalog cache write failed: %v", err)
		}
	}
	return courses, nil
}

// ListPublishedBundles returns all published bundles with courses, cache-first
func (r *catalogRepository) ListPublishedBundles() ([]models.Bundle, error) {
	if cached, err := cache.Get(publishedBundlesCacheKey); err == nil && cached != "" {
		var bundles []models.Bundle
		if err := json.Unmarshal([]byte(cached), &bundles); err == nil {
			return bundles, nil
		}
		_ = cache.Delete(publishedBundlesCacheKey)
	}

	var bundles []models.Bundle
	if err := r.db.Preload("Courses").Where("published = ?", true).Order("price").Find(&bundles).Error; err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(bundles); err == nil {
		if err := cache.Set(publishedBundlesCacheKey, payload, catalogCacheTTL); err != nil {
			log.Printf("catalog cache write failed: %v", err)
		}
	}
	return bundles, nil
}
