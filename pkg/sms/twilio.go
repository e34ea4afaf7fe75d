// Package sms delivers text messages (boarding codes, booking notices) through Twilio.
package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender sends a single text message and returns the provider message id.
type Sender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// messageCreator is the part of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// TwilioSender sends messages with the Twilio REST API.
type TwilioSender struct {
	api        messageCreator
	fromNumber string
}

// NewTwilioSender builds a sender from account credentials.
func NewTwilioSender(accountSID, authToken, fromNumber string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, fromNumber: fromNumber}
}

// SendSMS sends body to the E.164 number to.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", errors.New("sms: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.fromNumber)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
