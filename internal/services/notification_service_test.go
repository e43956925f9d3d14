package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSESClient captures SendEmail calls
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error)
	Inputs        []*ses.SendEmailInput
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.Inputs = append(m.Inputs, params)
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params)
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSuspensionNotifier_SendsNotice(t *testing.T) {
	client := &MockSESClient{}
	notifier := services.NewSESSuspensionNotifierWithClient(client, "security@example.com", testLogger())
	until := time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)

	err := notifier.NotifySuspension(context.Background(), &models.Account{ID: "acc-1", Email: "a@x.com"}, until)

	require.NoError(t, err)
	require.Len(t, client.Inputs, 1)

	input := client.Inputs[0]
	assert.Equal(t, "security@example.com", aws.ToString(input.Source))
	assert.Equal(t, []string{"a@x.com"}, input.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(input.Message.Subject.Data), "suspended")
	assert.True(t, strings.Contains(aws.ToString(input.Message.Body.Text.Data), until.Format(time.RFC1123)))
}

func TestSESSuspensionNotifier_PropagatesSendError(t *testing.T) {
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled by ses")
		},
	}
	notifier := services.NewSESSuspensionNotifierWithClient(client, "security@example.com", testLogger())

	err := notifier.NotifySuspension(context.Background(), &models.Account{Email: "a@x.com"}, time.Now())

	assert.ErrorContains(t, err, "throttled by ses")
}
