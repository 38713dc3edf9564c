package dashboard

import (
	"math"

	"github.com/juank/cpa-dashboard/backend/internal/models"
)

// Summary is the overview block computed over the unfiltered rows.
type Summary struct {
	Total            int     `json:"total"`
	Deposited        int     `json:"deposited"`
	Qualified        int     `json:"qualified"`
	Operative        int     `json:"operative"`
	DepositRate      int     `json:"deposit_rate"`
	QualifiedRate    int     `json:"qualified_rate"`
	OperativeRate    int     `json:"operative_rate"`
	CommissionsTotal float64 `json:"commissions_total"`
	WithdrawalsTotal float64 `json:"withdrawals_total"`
}

// Summarize counts the flagged rows and sums commissions and withdrawals,
// treating absent amounts as zero. Rates are whole percentages.
func Summarize(rows []models.Row) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		if r.Depositato == 1 {
			s.Deposited++
		}
		if r.Qualificato == 1 {
			s.Qualified++
		}
		if r.Operativo == 1 {
			s.Operative++
		}
		if r.Commissioni != nil {
			s.CommissionsTotal += *r.Commissioni
		}
		if r.Prelievi != nil {
			s.WithdrawalsTotal += *r.Prelievi
		}
	}
	s.DepositRate = rate(s.Deposited, s.Total)
	s.QualifiedRate = rate(s.Qualified, s.Total)
	s.OperativeRate = rate(s.Operative, s.Total)
	return s
}

func rate(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Floor(float64(n)/float64(total)*100 + 0.5))
}
