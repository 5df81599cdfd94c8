package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/Proton-105/pricechek-rider/internal/idempotency"
	"github.com/Proton-105/pricechek-rider/internal/middleware"
	"github.com/Proton-105/pricechek-rider/internal/sms"
)

var errMissingPhone = errors.New("phone number is required")

type ussdRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	SessionID   string `json:"sessionId"`
	ServiceCode string `json:"serviceCode"`
	Text        string `json:"text"`
}

type smsRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Text   string `json:"text"`
	Date   string `json:"date"`
	ID     string `json:"id"`
	LinkID string `json:"linkId"`
}

func (s smsRequest) inbound() sms.Inbound {
	return sms.Inbound{
		From:   strings.TrimSpace(s.From),
		To:     strings.TrimSpace(s.To),
		Text:   s.Text,
		Date:   s.Date,
		ID:     strings.TrimSpace(s.ID),
		LinkID: s.LinkID,
	}
}

func decodeUSSDJSON(r *http.Request) (ussdRequest, error) {
	var req ussdRequest

	body, err := middleware.PeekBody(r)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("invalid JSON body: %w", err)
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return req, errMissingPhone
	}

	return req, nil
}

// decodeUSSDForm reads the gateway form post. A non-empty "input" field replaces "text".
func decodeUSSDForm(r *http.Request) (ussdRequest, error) {
	form, err := readForm(r)
	if err != nil {
		return ussdRequest{}, err
	}

	req := ussdRequest{
		PhoneNumber: form.Get("phoneNumber"),
		SessionID:   form.Get("sessionId"),
		ServiceCode: form.Get("serviceCode"),
		Text:        form.Get("text"),
	}
	if input := form.Get("input"); input != "" {
		req.Text = input
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return req, errMissingPhone
	}

	return req, nil
}

// decodeSMS accepts a JSON body or a form post.
func decodeSMS(r *http.Request) (smsRequest, error) {
	var req smsRequest

	if isJSON(r) {
		body, err := middleware.PeekBody(r)
		if err != nil {
			return req, err
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
	} else {
		form, err := readForm(r)
		if err != nil {
			return req, err
		}
		req = smsRequest{
			From:   form.Get("from"),
			To:     form.Get("to"),
			Text:   form.Get("text"),
			Date:   form.Get("date"),
			ID:     form.Get("id"),
			LinkID: form.Get("linkId"),
		}
	}

	if strings.TrimSpace(req.From) == "" {
		return req, errMissingPhone
	}

	return req, nil
}

func readForm(r *http.Request) (url.Values, error) {
	body, err := middleware.PeekBody(r)
	if err != nil {
		return nil, err
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	return form, nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func ussdJSONPhone(r *http.Request) string {
	req, err := decodeUSSDJSON(r)
	if err != nil {
		return ""
	}
	return req.PhoneNumber
}

func ussdFormPhone(r *http.Request) string {
	req, err := decodeUSSDForm(r)
	if err != nil {
		return ""
	}
	return req.PhoneNumber
}

func smsPhone(r *http.Request) string {
	req, err := decodeSMS(r)
	if err != nil {
		return ""
	}
	return req.From
}

func smsKey(r *http.Request) string {
	req, err := decodeSMS(r)
	if err != nil {
		return ""
	}
	return idempotency.SMSKey(strings.TrimSpace(req.ID), strings.TrimSpace(req.From))
}
