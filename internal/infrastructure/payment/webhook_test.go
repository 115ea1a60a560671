package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"payment.succeeded","data":{"id":"pay_1","amount":1000,"metadata":{"order_id":"abc"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventSucceeded, event.Type)
	assert.Equal(t, "pay_1", event.Data.ID)
	assert.Equal(t, "abc", event.Data.Metadata["order_id"])
}

func TestParseEvent_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":           `{`,
		"missing type":       `{"data":{"id":"pay_1"}}`,
		"missing payment id": `{"type":"payment.failed","data":{}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvent([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestParseEvent_UnknownTypeWithoutIDIsAccepted(t *testing.T) {
	event, err := ParseEvent([]byte(`{"type":"customer.created","data":{}}`))
	require.NoError(t, err)
	assert.Equal(t, ActionIgnore, ActionFor(event.Type))
}

func TestActionMapping(t *testing.T) {
	for _, a := range []Action{ActionConfirm, ActionFail, ActionCancel, ActionRefund} {
		assert.Equal(t, a, ActionFor(EventTypeFor(a)), a.String())
	}
	assert.Equal(t, ActionConfirm, ActionForStatus(StatusSucceeded))
	assert.Equal(t, ActionIgnore, ActionForStatus(StatusPending))
	assert.Equal(t, "", EventTypeFor(ActionIgnore))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"payment.succeeded"}`)
	sig := Sign(body, "whsec")

	assert.True(t, VerifySignature(body, sig, "whsec"))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{}`), sig, "whsec"))
	assert.False(t, VerifySignature(body, "", "whsec"))

	assert.True(t, VerifySignature(body, "anything", ""), "without a secret only presence is checked")
	assert.False(t, VerifySignature(body, "", ""))
}
