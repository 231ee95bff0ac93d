package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	// Error without cause returns just the message
	err := NewTimeout("worker exceeded 30m")
	if err.Error() != "worker exceeded 30m" {
		t.Errorf("expected %q, got %q", "worker exceeded 30m", err.Error())
	}
}

func TestErrorMessageWithCause(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := NewResource("failed to create workspace", cause)
	want := "failed to create workspace: exit status 1"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(KindGeneral, "wrapper", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name string
		err  error
		pred func(error) bool
		want bool
	}{
		{"denied matches IsDenied", NewDenied("tool refused"), IsDenied, true},
		{"timeout matches IsTimeout", NewTimeout("t"), IsTimeout, true},
		{"max-turns matches IsMaxTurns", NewMaxTurns("m"), IsMaxTurns, true},
		{"no-work matches IsNoWork", NoWork, IsNoWork, true},
		{"resource matches IsResource", NewResource("r", nil), IsResource, true},
		{"foreign error matches nothing", fmt.Errorf("plain"), IsDenied, false},
		{"timeout is not denied", NewTimeout("t"), IsDenied, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pred(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is success", nil, ExitSuccess},
		{"no work is success", NoWork, ExitSuccess},
		{"config error", NewConfig("bad config"), ExitConfigError},
		{"denied", NewDenied("refused"), ExitDenied},
		{"resource", NewResource("workspace", nil), ExitResource},
		{"timeout is general", NewTimeout("t"), ExitGeneralError},
		{"foreign error is general", fmt.Errorf("plain"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
