package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNotificationLabels(t *testing.T) {
	before := testutil.ToFloat64(Notifications.WithLabelValues("email", "error"))
	Notification("email", errors.New("smtp down"))
	Notification("email", nil)
	if got := testutil.ToFloat64(Notifications.WithLabelValues("email", "error")); got != before+1 {
		t.Fatalf("error counter = %v, want %v", got, before+1)
	}
}

func TestTransition(t *testing.T) {
	before := testutil.ToFloat64(Transitions.WithLabelValues("leave", "approved"))
	Transition("leave", "approved")
	if got := testutil.ToFloat64(Transitions.WithLabelValues("leave", "approved")); got != before+1 {
		t.Fatalf("got %v", got)
	}
}
