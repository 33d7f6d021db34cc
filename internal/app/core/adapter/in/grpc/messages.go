package grpc

import (
	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
)

// 金額一律以最小單位 (wei) 的十進位字串傳遞，避免 JSON number 精度問題

type DepositRequest struct {
	// Amount 附帶的存款金額
	Amount string `json:"amount"`
}

type WithdrawRequest struct {
	Amount string `json:"amount"`
}

type GetBalanceRequest struct {
	Account string `json:"account"`
}

type Empty struct{}

type ReceiptResponse struct {
	TransactionID string `json:"transaction_id"`
	Account       string `json:"account"`
	Amount        string `json:"amount"`
	NewBalance    string `json:"new_balance"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type LimitResponse struct {
	Limit string `json:"limit"`
}

func newReceiptResponse(r domain.Receipt) *ReceiptResponse {
	return &ReceiptResponse{
		TransactionID: r.TransactionID.String(),
		Account:       r.Account.Hex(),
		Amount:        r.Amount.Dec(),
		NewBalance:    r.NewBalance.Dec(),
	}
}
