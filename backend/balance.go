package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"dashboard/model"
)

func (a *API) Balance(ctx context.Context) (*model.Balance, error) {
	var b model.Balance
	if _, err := a.call(ctx, request{op: "balance", method: http.MethodGet, path: "/balance"}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// BalanceHistory accepts the transactions either under data.transactions or
// as data itself.
func (a *API) BalanceHistory(ctx context.Context) (*model.BalanceHistory, error) {
	var raw json.RawMessage
	if _, err := a.call(ctx, request{op: "balance_history", method: http.MethodGet, path: "/balance/history"}, &raw); err != nil {
		return nil, err
	}

	h := &model.BalanceHistory{Transactions: []model.Transaction{}}
	if len(raw) == 0 {
		return h, nil
	}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &h.Transactions); err != nil {
			return nil, err
		}
		return h, nil
	}
	var obj struct {
		model.BalanceHistory
		Data []model.Transaction `json:"data"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	*h = obj.BalanceHistory
	if len(h.Transactions) == 0 {
		h.Transactions = obj.Data
	}
	if h.Transactions == nil {
		h.Transactions = []model.Transaction{}
	}
	return h, nil
}

func (a *API) Withdraw(ctx context.Context, amount float64) (string, error) {
	env, err := a.call(ctx, request{
		op:     "withdraw",
		method: http.MethodPost,
		path:   "/balance/withdraw",
		body:   map[string]float64{"amount": amount},
	}, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (a *API) WithdrawHistory(ctx context.Context, requester model.RequesterType) ([]model.Withdrawal, error) {
	var list []model.Withdrawal
	_, err := a.call(ctx, request{
		op:     "withdraw_history",
		method: http.MethodGet,
		path:   "/balance/withdraw-history/" + url.PathEscape(string(requester)),
	}, &list)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Withdrawal{}
	}
	return list, nil
}
