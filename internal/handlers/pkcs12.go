package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"genkey/internal/certs"
	genkeyerrors "genkey/internal/errors"
	"genkey/internal/logger"
	"genkey/middleware"
)

const (
	pkcs12ContentType   = "application/x-pkcs12"
	fallbackArchiveName = "certificate"
)

var (
	errInvalidDate  = errors.New("must be an integer number of epoch milliseconds or null")
	errTrailingData = errors.New("unexpected data after the request object")
)

// pkcs12Request is the JSON body of POST /pkcs12. Dates stay raw so that
// only integer milliseconds and null are accepted.
type pkcs12Request struct {
	TaxID          string          `json:"npwp"`
	CompanyName    string          `json:"companyName"`
	Email          string          `json:"email"`
	Password       string          `json:"password"`
	Location       string          `json:"location"`
	Province       string          `json:"province"`
	CreationDate   json.RawMessage `json:"creationDate"`
	ExpirationDate json.RawMessage `json:"expirationDate"`
}

// RegisterPKCS12Routes mounts the issuance endpoint.
func RegisterPKCS12Routes(r chi.Router, issuer certs.Issuer) {
	r.Post("/pkcs12", func(w http.ResponseWriter, req *http.Request) {
		requestID := middleware.GetRequestID(req.Context())

		certRequest, err := decodePKCS12Request(req)
		if err != nil {
			status := http.StatusBadRequest
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				status = http.StatusRequestEntityTooLarge
			}
			logger.HTTPError(req.Method, req.URL.Path, status, err).
				Str("request_id", requestID).
				Msg("invalid pkcs12 request body")
			http.Error(w, err.Error(), status)
			return
		}

		issued, err := issuer.Issue(req.Context(), certRequest)
		if err != nil {
			if errors.Is(err, genkeyerrors.ErrValidation) {
				logger.HTTPError(req.Method, req.URL.Path, http.StatusBadRequest, err).
					Str("request_id", requestID).
					Msg("rejected certificate request")
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.HTTPError(req.Method, req.URL.Path, http.StatusInternalServerError, err).
				Str("request_id", requestID).
				Msg("failed to issue certificate")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", pkcs12ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.p12"`, archiveFileName(issued.FriendlyName)))
		w.Header().Set("Content-Length", strconv.Itoa(len(issued.Data)))
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Issuance-ID", issued.IssuanceID)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(issued.Data); err != nil {
			logger.HTTPError(req.Method, req.URL.Path, http.StatusOK, err).
				Str("request_id", requestID).
				Str("issuance_id", issued.IssuanceID).
				Msg("failed to write pkcs12 archive")
		}
	})
}

func decodePKCS12Request(req *http.Request) (certs.Request, error) {
	var body pkcs12Request
	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(&body); err != nil {
		return certs.Request{}, bodyError(err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		if err != nil {
			return certs.Request{}, bodyError(err)
		}
		return certs.Request{}, fmt.Errorf("%w: malformed JSON body: %v", genkeyerrors.ErrValidation, errTrailingData)
	}

	creationDate, err := parseEpochMillis(body.CreationDate)
	if err != nil {
		return certs.Request{}, fmt.Errorf("%w: creationDate %w", genkeyerrors.ErrValidation, err)
	}
	expirationDate, err := parseEpochMillis(body.ExpirationDate)
	if err != nil {
		return certs.Request{}, fmt.Errorf("%w: expirationDate %w", genkeyerrors.ErrValidation, err)
	}

	return certs.Request{
		TaxID:          strings.TrimSpace(body.TaxID),
		CompanyName:    strings.TrimSpace(body.CompanyName),
		Email:          strings.TrimSpace(body.Email),
		Password:       body.Password,
		Location:       strings.TrimSpace(body.Location),
		Province:       strings.TrimSpace(body.Province),
		CreationDate:   creationDate,
		ExpirationDate: expirationDate,
	}, nil
}

func bodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return fmt.Errorf("%w: malformed JSON body: %v", genkeyerrors.ErrValidation, err)
}

// parseEpochMillis returns the zero time for an absent or null value.
func parseEpochMillis(raw json.RawMessage) (time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return time.Time{}, nil
	}
	millis, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return time.UnixMilli(millis).UTC(), nil
}

// archiveFileName keeps the download name to a safe character set.
func archiveFileName(friendlyName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, friendlyName)
	if name == "" {
		return fallbackArchiveName
	}
	return name
}
