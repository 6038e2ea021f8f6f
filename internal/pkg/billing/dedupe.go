package billing

import (
	"time"

	"github.com/auroracademy/backend/app/models"
)

// DefaultDuplicateWindow is how close two identical-looking sales must be
// to count as one charge for reporting. Near-simultaneous duplicate
// webhook deliveries land well inside it.
const DefaultDuplicateWindow = 60 * time.Second

type saleKey struct {
	email  string
	label  string
	amount float64
}

// DedupeSales collapses near-duplicate purchases for reporting. Input must
// be sorted newest-first; the newest instance of each (user email, item
// label, amount) cluster is kept and anything with the same key within
// window of the nearest newer kept sale is dropped. Pure and idempotent:
// re-running on its own output returns it unchanged.
func DedupeSales(sales []models.Purchase, window time.Duration) []models.Purchase {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}

	kept := make([]models.Purchase, 0, len(sales))
	lastKeptAt := make(map[saleKey]time.Time, len(sales))

	for _, sale := range sales {
		key := saleKey{
			email:  sale.User.Email,
			label:  sale.ItemLabel(),
			amount: sale.Amount,
		}

		if prev, ok := lastKeptAt[key]; ok {
			gap := prev.Sub(sale.CreatedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap < window {
				continue
			}
		}

		kept = append(kept, sale)
		lastKeptAt[key] = sale.CreatedAt
	}
	return kept
}
