package processor

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/juank/cpa-dashboard/backend/internal/processor/common"
)

// Source report field names.
const (
	FieldUserID            = "User ID"
	FieldCustomerName      = "Customer Name"
	FieldRegistrationDate  = "Registration Date"
	FieldQualificationDate = "Qualification Date"
	FieldFirstDeposit      = "First Deposit"
	FieldDepositCount      = "Deposit Count"
	FieldWithdrawals       = "Withdrawals"
	FieldPositionCount     = "Position Count"
	FieldLotAmount         = "Lot Amount"
	FieldCommissions       = "Commissions"
	FieldCommission        = "Commission"
)

const day = 24 * time.Hour

// pair groups the registration and activity record seen for one identifier.
type pair struct {
	reg models.Record
	act models.Record
}

// index keeps pairs in the order their identifier was first seen.
type index struct {
	ids   []string
	pairs map[string]*pair
}

func newIndex(size int) *index {
	return &index{pairs: make(map[string]*pair, size)}
}

func (ix *index) slot(id string) *pair {
	p, ok := ix.pairs[id]
	if !ok {
		p = &pair{}
		ix.pairs[id] = p
		ix.ids = append(ix.ids, id)
	}
	return p
}

// Combine joins registration and activity records by User ID and derives one
// row per identifier. A later record for the same identifier and source
// replaces the earlier one. Rows are sorted by DATA descending, then USER ID.
func Combine(registrations, activity []models.Record) []models.Row {
	ix := newIndex(len(registrations) + len(activity))

	for _, r := range registrations {
		id := common.ToString(r.Get(FieldUserID))
		if id == "" {
			continue
		}
		ix.slot(id).reg = r
	}
	for _, a := range activity {
		id := common.ToString(a.Get(FieldUserID))
		if id == "" {
			continue
		}
		ix.slot(id).act = a
	}

	out := make([]models.Row, 0, len(ix.ids))
	for _, id := range ix.ids {
		out = append(out, derive(id, ix.pairs[id]))
	}

	sortRows(out)
	return out
}

func derive(userID string, p *pair) models.Row {
	reg, act := p.reg, p.act

	var nome *string
	if v := reg.Get(FieldCustomerName); v != nil {
		s := common.ToString(v)
		nome = &s
	}

	regDate := common.DatePtr(reg.Get(FieldRegistrationDate))
	qualDate := common.DatePtr(reg.Get(FieldQualificationDate))

	firstDeposit := common.NumberPtr(reg.Get(FieldFirstDeposit))
	depositCount := common.NumberOr(reg.Get(FieldDepositCount), 0)

	// Activity wins over Registration for withdrawals and commissions.
	withdrawals := common.NumberPtr(act.Get(FieldWithdrawals))
	if withdrawals == nil {
		withdrawals = common.NumberPtr(reg.Get(FieldWithdrawals))
	}
	commissions := common.NumberPtr(act.Get(FieldCommissions))
	if commissions == nil {
		commissions = common.NumberPtr(reg.Get(FieldCommission))
	}

	positions := math.Max(
		common.NumberOr(reg.Get(FieldPositionCount), 0),
		common.NumberOr(act.Get(FieldPositionCount), 0),
	)
	lots := math.Max(
		common.NumberOr(reg.Get(FieldLotAmount), 0),
		common.NumberOr(act.Get(FieldLotAmount), 0),
	)

	row := models.Row{
		Nome:          nome,
		UserID:        userID,
		Data:          regDate,
		Registrato:    1,
		Importo:       firstDeposit,
		Prelievi:      withdrawals,
		Commissioni:   commissions,
		DataQualifica: qualDate,
	}

	if depositCount > 0 || (firstDeposit != nil && *firstDeposit > 0) {
		row.Depositato = 1
	}
	if positions > 0 {
		row.Operativo = 1
	}
	if lots >= 1 || qualDate != nil {
		row.Qualificato = 1
	}
	if regDate != nil && qualDate != nil {
		days := int(qualDate.Sub(*regDate) / day)
		row.TempoQual = &days
	}
	if lots > 1 && (commissions == nil || *commissions == 0) {
		row.NoCommissioni = 1
	}

	return row
}

// sortRows orders by DATA descending; a missing DATA counts as the Unix epoch.
func sortRows(rows []models.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, tj := sortKey(rows[i].Data), sortKey(rows[j].Data)
		if ti != tj {
			return ti > tj
		}
		return strings.Compare(rows[i].UserID, rows[j].UserID) < 0
	})
}

func sortKey(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}
