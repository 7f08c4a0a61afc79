package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	"github.com/rs/zerolog/log"
)

func handleListCustomers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		customers, err := deps.Store.ListCustomers(r.Context(), limit)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customers)
	}
}

func handleGetCustomer(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		customer, err := deps.Store.CustomerWithMessages(r.Context(), id)
		if err != nil {
			customerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	}
}

func handleListMessages(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "customerID")
		if err != nil {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		limit, err := queryLimit(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		msgs, err := deps.Store.ListMessages(r.Context(), id, limit)
		if err != nil {
			customerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleListArticles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		articles, err := deps.Store.ListArticles(r.Context(), r.URL.Query().Get("status"))
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, articles)
	}
}

func handleGetArticle(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		article, err := deps.Store.GetArticle(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			internalError(w, err)
			return
		}
		if article == nil {
			httpError(w, http.StatusNotFound, "Article not found")
			return
		}
		writeJSON(w, http.StatusOK, article)
	}
}

func handleListTickets(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "customerID")
		if err != nil {
			httpError(w, http.StatusBadRequest, "%v", err)
			return
		}
		if _, err := deps.Store.GetCustomer(r.Context(), id); err != nil {
			customerError(w, err)
			return
		}
		tickets, err := deps.Store.ListTickets(r.Context(), id)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tickets)
	}
}

func customerError(w http.ResponseWriter, err error) {
	if errors.Is(err, contractx.ErrCustomerNotFound) {
		httpError(w, http.StatusNotFound, "Customer not found")
		return
	}
	internalError(w, err)
}

func internalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("debug route failed")
	httpError(w, http.StatusInternalServerError, "internal error")
}
