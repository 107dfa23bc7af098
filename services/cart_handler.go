package services

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/norun9/gomarketplace-cart/cartstore"
)

// cartView is what every cart endpoint answers with.
type cartView struct {
	Products []cartstore.CartItem `json:"products"`
	Totals   cartstore.Totals     `json:"totals"`
}

type errorBody struct {
	Error string `json:"error"`
}

type cartHandler struct {
	log  logrus.FieldLogger
	slot Pinger
}

// NewRouter returns the HTTP API UI clients use to read and change the cart.
func NewRouter(store *cartstore.Store, slot Pinger, log logrus.FieldLogger) http.Handler {
	h := &cartHandler{log: log, slot: slot}

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("cartservice"))
	r.HandleFunc("/_healthz", h.healthz).Methods(http.MethodGet)

	cart := r.PathPrefix("/cart").Subrouter()
	cart.Use(provideStore(store))
	cart.HandleFunc("", h.getCart).Methods(http.MethodGet)
	cart.HandleFunc("/items", h.addToCart).Methods(http.MethodPost)
	cart.HandleFunc("/items/{id}/increment", h.increment).Methods(http.MethodPost)
	cart.HandleFunc("/items/{id}/decrement", h.decrement).Methods(http.MethodPost)

	return &logHandler{log: log, next: r}
}

func (h *cartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	h.renderCart(w, r, cartstore.FromContext(r.Context()))
}

func (h *cartHandler) addToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := cartstore.FromContext(ctx)

	var p cartstore.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.renderError(w, r, errors.Wrap(err, "invalid product body"), http.StatusBadRequest)
		return
	}

	if err := store.AddToCart(ctx, p); err != nil {
		if errors.Is(err, cartstore.ErrInvalidProduct) {
			h.renderError(w, r, err, http.StatusBadRequest)
			return
		}
		h.renderError(w, r, errors.Wrap(err, "failed to add product to cart"), http.StatusInternalServerError)
		return
	}
	h.renderCart(w, r, store)
}

func (h *cartHandler) increment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := cartstore.FromContext(ctx)

	if err := store.Increment(ctx, mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, cartstore.ErrItemNotFound) {
			h.renderError(w, r, errors.New(cartstore.AlertIncrementFailed), http.StatusNotFound)
			return
		}
		h.renderError(w, r, errors.Wrap(err, "failed to save cart"), http.StatusInternalServerError)
		return
	}
	h.renderCart(w, r, store)
}

func (h *cartHandler) decrement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := cartstore.FromContext(ctx)

	if err := store.Decrement(ctx, mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, cartstore.ErrItemNotFound) {
			h.renderError(w, r, errors.New(cartstore.AlertDecrementFailed), http.StatusNotFound)
			return
		}
		h.renderError(w, r, errors.Wrap(err, "failed to save cart"), http.StatusInternalServerError)
		return
	}
	h.renderCart(w, r, store)
}

func (h *cartHandler) healthz(w http.ResponseWriter, r *http.Request) {
	if !h.slot.Ping(r.Context()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
		return
	}
	_, _ = w.Write([]byte("ok"))
}

func (h *cartHandler) renderCart(w http.ResponseWriter, r *http.Request, store *cartstore.Store) {
	h.renderJSON(w, r, http.StatusOK, cartView{
		Products: store.Products(),
		Totals:   store.Totals(),
	})
}

func (h *cartHandler) renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	log := loggerFrom(r.Context(), h.log).WithError(err)
	if code >= http.StatusInternalServerError {
		log.Error("request error")
	} else {
		log.Info("request rejected")
	}
	h.renderJSON(w, r, code, errorBody{Error: err.Error()})
}

func (h *cartHandler) renderJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r.Context(), h.log).WithError(err).Warn("failed to write response")
	}
}
