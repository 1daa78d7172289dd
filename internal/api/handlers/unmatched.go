package handlers

import (
	"net/http"

	"github.com/brightbooks/recon-engine/internal/api/dto"
	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/infrastructure/storage"
)

// UnmatchedHandler serves the open items on both sides of the ledger.
type UnmatchedHandler struct {
	*Base
}

// NewUnmatchedHandler creates a new unmatched handler.
func NewUnmatchedHandler(repo storage.Repository) *UnmatchedHandler {
	return &UnmatchedHandler{Base: NewBase(repo)}
}

// Get handles GET /api/v1/unmatched - returns unmatched receipts and
// transactions.
func (h *UnmatchedHandler) Get(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 100)

	receipts, err := h.repo.UnmatchedReceipts(r.Context(), limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	transactions, err := h.repo.UnmatchedTransactions(r.Context(), limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.UnmatchedResponse{
		Receipts:         make([]dto.ReceiptResponse, 0, len(receipts)),
		Transactions:     make([]dto.TransactionResponse, 0, len(transactions)),
		ReceiptCount:     len(receipts),
		TransactionCount: len(transactions),
	}
	for _, receipt := range receipts {
		response.Receipts = append(response.Receipts, toReceiptResponse(receipt))
	}
	for _, tx := range transactions {
		response.Transactions = append(response.Transactions, toTransactionResponse(tx))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func toReceiptResponse(r *ledger.Receipt) dto.ReceiptResponse {
	return dto.ReceiptResponse{
		ID:            r.ID,
		Vendor:        r.Vendor(),
		Amount:        r.Amount.String(),
		Credit:        r.Credit,
		Date:          r.Date.String(),
		Description:   r.Description,
		PaymentMethod: string(r.PaymentMethod),
	}
}

func toTransactionResponse(t *ledger.BankTransaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Date:        t.Date.String(),
		Amount:      t.Amount().String(),
		Credit:      t.IsCredit(),
		Description: t.Description,
	}
}
