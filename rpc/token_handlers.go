package rpc

import (
	"errors"
	"net/http"

	"payway/native/token"
)

const (
	codeTokenUnauthorized = -32041
	codeTokenInvalid      = -32042
	codeTokenFunds        = -32043
)

func tokenErrorCode(err error) int {
	switch {
	case errors.Is(err, token.ErrUnauthorized):
		return codeTokenUnauthorized
	case errors.Is(err, token.ErrInvalidAmount), errors.Is(err, token.ErrSelfTransfer):
		return codeTokenInvalid
	case errors.Is(err, token.ErrInsufficientBalance), errors.Is(err, token.ErrInsufficientAllowance):
		return codeTokenFunds
	default:
		return codeServerError
	}
}

func writeTokenError(w http.ResponseWriter, id interface{}, err error) string {
	code := tokenErrorCode(err)
	status := http.StatusBadRequest
	switch code {
	case codeTokenUnauthorized:
		status = http.StatusForbidden
	case codeServerError:
		status = http.StatusInternalServerError
	}
	writeError(w, status, id, code, err.Error(), nil)
	return "error"
}

type tokenMintParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTokenMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	var params tokenMintParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	to, err := parseBech32Address(params.To, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	amount, err := parsePositiveBigInt(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.token.Mint(caller, to, amount); err != nil {
		return writeTokenError(w, req.ID, err)
	}
	s.logger.Info("tokens minted", "to", params.To, "amount", amount.String())
	writeResult(w, req.ID, map[string]bool{"minted": true})
	return "ok"
}

type tokenTransferParams struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	var params tokenTransferParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	from, err := parseBech32Address(params.From, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	to, err := parseBech32Address(params.To, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	amount, err := parsePositiveBigInt(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.token.Transfer(from, to, amount); err != nil {
		return writeTokenError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"transferred": true})
	return "ok"
}

type tokenApproveParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	var params tokenApproveParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	owner, err := parseBech32Address(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	spender, err := parseBech32Address(params.Spender, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	amount, err := parsePositiveBigInt(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.token.Approve(owner, spender, amount); err != nil {
		return writeTokenError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"approved": true})
	return "ok"
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	var params addressParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	addr, err := parseBech32Address(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	balance, err := s.token.BalanceOf(addr)
	if err != nil {
		return writeTokenError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"balance": formatBigInt(balance)})
	return "ok"
}

type tokenAllowanceParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

func (s *Server) handleTokenAllowance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	var params tokenAllowanceParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	owner, err := parseBech32Address(params.Owner, "owner")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	spender, err := parseBech32Address(params.Spender, "spender")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	allowance, err := s.token.Allowance(owner, spender)
	if err != nil {
		return writeTokenError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"allowance": formatBigInt(allowance)})
	return "ok"
}

func (s *Server) handleTokenTotalSupply(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	supply, err := s.token.TotalSupply()
	if err != nil {
		return writeTokenError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"supply": formatBigInt(supply)})
	return "ok"
}
