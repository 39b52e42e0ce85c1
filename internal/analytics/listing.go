package analytics

import (
	"sort"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/stats"
)

// TransactionView is a display row of the ledger
type TransactionView struct {
	Time         string        `json:"time"`
	Date         string        `json:"date"`
	Description  string        `json:"description"`
	Category     string        `json:"category"`
	Type         string        `json:"type"`
	Amount       float64       `json:"amount"`
	Status       string        `json:"status"`
	Counterparty string        `json:"counterparty"`
	Source       models.Source `json:"source"`
	IsRefund     bool          `json:"is_refund"`
}

func newTransactionView(t *models.Transaction) TransactionView {
	return TransactionView{
		Time:         t.Timestamp.Format("2006-01-02 15:04:05"),
		Date:         t.Date,
		Description:  t.Description,
		Category:     t.Category,
		Type:         t.Direction.Label(),
		Amount:       stats.Round2(t.Value()),
		Status:       t.Status,
		Counterparty: t.Counterparty,
		Source:       t.Source,
		IsRefund:     t.IsRefund,
	}
}

// Pagination describes the returned page
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	PerPage      int `json:"per_page"`
	TotalPages   int `json:"total_pages"`
	TotalRecords int `json:"total_records"`
}

// TransactionPage is one page of the listing
type TransactionPage struct {
	Transactions []TransactionView `json:"transactions"`
	Pagination   Pagination        `json:"pagination"`
}

// listable keeps income and expense rows and every refund. Neutral
// movements that are not refunds stay out of the listing.
func listable(t *models.Transaction) bool {
	return t.IsRefund || t.Direction == models.DirectionIncome || t.Direction == models.DirectionExpense
}

// Transactions lists rows newest first. A page below 1 becomes 1 and a page
// past the end becomes the last page; perPage 0 uses the configured size.
func (e *Engine) Transactions(rows []models.Transaction, page, perPage int) TransactionPage {
	if perPage <= 0 {
		perPage = e.config.PageSize
	}
	listed := keep(rows, listable)
	sort.SliceStable(listed, func(i, j int) bool { return listed[i].Timestamp.After(listed[j].Timestamp) })

	totalPages := (len(listed) + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > len(listed) {
		end = len(listed)
	}
	views := make([]TransactionView, 0, end-start)
	for i := start; i < end; i++ {
		views = append(views, newTransactionView(&listed[i]))
	}
	return TransactionPage{
		Transactions: views,
		Pagination: Pagination{
			CurrentPage:  page,
			PerPage:      perPage,
			TotalPages:   totalPages,
			TotalRecords: len(listed),
		},
	}
}
