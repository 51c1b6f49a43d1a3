package rpc

import (
	"errors"
	"math/big"
	"net/http"

	"payway/core/state"
	"payway/native/storefront"
	"payway/native/token"
	"payway/observability"
)

const (
	codeStorefrontUnauthorized = -32031
	codeStorefrontNotFound     = -32032
	codeStorefrontInvalid      = -32033
	codeStorefrontFunds        = -32034
)

func storefrontErrorCode(err error) int {
	switch {
	case errors.Is(err, storefront.ErrUnauthorized):
		return codeStorefrontUnauthorized
	case errors.Is(err, storefront.ErrItemNotFound):
		return codeStorefrontNotFound
	case errors.Is(err, storefront.ErrInvalidItem),
		errors.Is(err, storefront.ErrInvalidPayment),
		errors.Is(err, state.ErrSelfTransfer),
		errors.Is(err, token.ErrSelfTransfer):
		return codeStorefrontInvalid
	case errors.Is(err, state.ErrInsufficientFunds),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return codeStorefrontFunds
	default:
		return codeServerError
	}
}

func storefrontErrorStatus(code int) int {
	switch code {
	case codeStorefrontUnauthorized:
		return http.StatusForbidden
	case codeStorefrontNotFound:
		return http.StatusNotFound
	case codeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeStorefrontError(w http.ResponseWriter, id interface{}, err error) string {
	code := storefrontErrorCode(err)
	writeError(w, storefrontErrorStatus(code), id, code, err.Error(), nil)
	return "error"
}

type itemJSON struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Category    uint8  `json:"category"`
	TokenPrice  string `json:"tokenPrice"`
	NativePrice string `json:"nativePrice"`
	Stars       uint8  `json:"stars"`
	Grade       uint8  `json:"grade"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Available   bool   `json:"available"`
}

func itemToJSON(item *storefront.Item) itemJSON {
	return itemJSON{
		ID:          item.ID,
		Name:        item.Name,
		Category:    uint8(item.Category),
		TokenPrice:  formatBigInt(item.TokenPrice),
		NativePrice: formatBigInt(item.NativePrice),
		Stars:       item.Stars,
		Grade:       uint8(item.Grade),
		Description: item.Description,
		ImageURL:    item.ImageURL,
		Available:   item.Available,
	}
}

type customerJSON struct {
	Address      string `json:"address"`
	Handle       uint64 `json:"handle"`
	RegisteredAt uint64 `json:"registeredAt"`
}

func customerToJSON(c *storefront.Customer) customerJSON {
	return customerJSON{
		Address:      formatAddress(c.Address),
		Handle:       c.Handle,
		RegisteredAt: c.RegisteredAt,
	}
}

type paymentJSON struct {
	Sequence uint64 `json:"sequence"`
	Payer    string `json:"payer"`
	ItemID   uint64 `json:"itemId"`
	Handle   uint64 `json:"handle"`
	Quantity uint64 `json:"quantity"`
	Note     string `json:"note,omitempty"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
	PaidAt   int64  `json:"paidAt"`
}

func paymentToJSON(p *storefront.Payment) paymentJSON {
	return paymentJSON{
		Sequence: p.Sequence,
		Payer:    formatAddress(p.Payer),
		ItemID:   p.ItemID,
		Handle:   p.Handle,
		Quantity: p.Quantity,
		Note:     p.Note,
		Currency: p.Currency.String(),
		Amount:   formatBigInt(p.Amount),
		PaidAt:   p.PaidAt,
	}
}

type addItemParams struct {
	Caller      string `json:"caller"`
	Name        string `json:"name"`
	Category    uint8  `json:"category"`
	TokenPrice  string `json:"tokenPrice"`
	NativePrice string `json:"nativePrice"`
	Stars       uint8  `json:"stars"`
	Grade       uint8  `json:"grade"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Available   bool   `json:"available"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	var params addItemParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	spec := storefront.ItemSpec{
		Name:        params.Name,
		Category:    storefront.Category(params.Category),
		Stars:       params.Stars,
		Grade:       storefront.Grade(params.Grade),
		Description: params.Description,
		ImageURL:    params.ImageURL,
		Available:   params.Available,
	}
	if params.TokenPrice != "" {
		price, err := parsePositiveBigInt(params.TokenPrice, "tokenPrice")
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return "invalid_params"
		}
		spec.TokenPrice = price
	}
	if params.NativePrice != "" {
		price, err := parsePositiveBigInt(params.NativePrice, "nativePrice")
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return "invalid_params"
		}
		spec.NativePrice = price
	}
	id, err := s.engine.AddItem(caller, spec)
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	s.logger.Info("catalog item added", "id", id, "name", spec.Name)
	writeResult(w, req.ID, map[string]uint64{"id": id})
	return "ok"
}

type registerParams struct {
	Caller string `json:"caller"`
	Handle uint64 `json:"handle"`
}

func (s *Server) handleRegister(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	var params registerParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.engine.Register(caller, params.Handle); err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"registered": true})
	return "ok"
}

type payParams struct {
	Caller   string `json:"caller"`
	ItemID   uint64 `json:"itemId"`
	Handle   uint64 `json:"handle"`
	Quantity uint64 `json:"quantity"`
	Note     string `json:"note"`
	Amount   string `json:"amount"`
}

func (s *Server) handlePayNative(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	params, caller, amount, ok := s.decodePayParams(w, req)
	if !ok {
		return "invalid_params"
	}
	payment, err := s.engine.PayNative(caller, params.ItemID, params.Handle, params.Quantity, params.Note, amount)
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	observability.Storefront().ObservePayment(payment.Currency.String())
	writeResult(w, req.ID, paymentToJSON(payment))
	return "ok"
}

func (s *Server) handlePayToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	params, caller, amount, ok := s.decodePayParams(w, req)
	if !ok {
		return "invalid_params"
	}
	payment, err := s.engine.PayToken(caller, params.ItemID, params.Handle, amount, params.Quantity, params.Note)
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	observability.Storefront().ObservePayment(payment.Currency.String())
	writeResult(w, req.ID, paymentToJSON(payment))
	return "ok"
}

func (s *Server) decodePayParams(w http.ResponseWriter, req *RPCRequest) (payParams, [20]byte, *big.Int, bool) {
	var params payParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return payParams{}, [20]byte{}, nil, false
	}
	caller, err := parseBech32Address(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return payParams{}, [20]byte{}, nil, false
	}
	amount, err := parsePositiveBigInt(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return payParams{}, [20]byte{}, nil, false
	}
	return params, caller, amount, true
}

type itemIDParams struct {
	ID uint64 `json:"id"`
}

func (s *Server) handleGetItemByID(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	var params itemIDParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	item, err := s.engine.Item(params.ID)
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	writeResult(w, req.ID, itemToJSON(item))
	return "ok"
}

func (s *Server) handleGetAllItems(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	items, err := s.engine.Items()
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	out := make([]itemJSON, 0, len(items))
	for _, item := range items {
		out = append(out, itemToJSON(item))
	}
	writeResult(w, req.ID, out)
	return "ok"
}

func (s *Server) handleGetCurrentItemID(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	id, err := s.engine.CurrentItemID()
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]uint64{"id": id})
	return "ok"
}

func (s *Server) handleGetAllCustomers(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	customers, err := s.engine.Customers()
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	out := make([]customerJSON, 0, len(customers))
	for _, c := range customers {
		out = append(out, customerToJSON(c))
	}
	writeResult(w, req.ID, out)
	return "ok"
}

func (s *Server) handleGetAllPayments(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	payments, err := s.engine.Payments()
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	out := make([]paymentJSON, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentToJSON(p))
	}
	writeResult(w, req.ID, out)
	return "ok"
}

type addressParams struct {
	Address string `json:"address"`
}

func (s *Server) handleGetPaymentOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	var params addressParams
	if err := decodeParams(req, 1, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	payer, err := parseBech32Address(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	payments, err := s.engine.PaymentsOf(payer)
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	out := make([]paymentJSON, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentToJSON(p))
	}
	writeResult(w, req.ID, out)
	return "ok"
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	balance, err := s.engine.NativeBalance()
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"balance": formatBigInt(balance)})
	return "ok"
}

func (s *Server) handleGetTokenBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) string {
	balance, err := s.engine.TokenBalance()
	if err != nil {
		return writeStorefrontError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"balance": formatBigInt(balance)})
	return "ok"
}
