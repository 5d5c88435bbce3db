package router

import (
	"testing"
	"time"
)

func TestHealthTracker_LazyCreation(t *testing.T) {
	ht := NewHealthTracker(3, time.Minute, 5*time.Second)
	if !ht.IsReady("openai-translate") {
		t.Error("expected unseen provider to be ready")
	}
	if ht.StateOf("openai-translate") != StateClosed {
		t.Errorf("expected StateClosed, got %s", ht.StateOf("openai-translate"))
	}
}

func TestHealthTracker_RecordFailureOpensCircuit(t *testing.T) {
	ht := NewHealthTracker(2, time.Minute, 5*time.Second)

	ht.RecordFailure("openai-translate")
	ht.RecordFailure("openai-translate")

	if ht.IsReady("openai-translate") {
		t.Error("expected provider to be not ready after 2 failures")
	}
}

func TestHealthTracker_RecoversThroughTrialCall(t *testing.T) {
	ht := NewHealthTracker(1, time.Minute, 10*time.Millisecond)

	ht.RecordFailure("openai-translate")
	if ht.IsReady("openai-translate") {
		t.Error("expected provider to be not ready")
	}

	time.Sleep(15 * time.Millisecond)

	// Cooldown elapsed: half-open, the next call is the trial.
	if !ht.IsReady("openai-translate") {
		t.Error("expected provider to be ready for trial call")
	}

	ht.RecordSuccess("openai-translate")
	if ht.StateOf("openai-translate") != StateClosed {
		t.Errorf("expected StateClosed after trial success, got %s", ht.StateOf("openai-translate"))
	}
}

func TestHealthTracker_IndependentProviders(t *testing.T) {
	ht := NewHealthTracker(1, time.Minute, 5*time.Second)

	ht.RecordFailure("openai-translate")

	if ht.IsReady("openai-translate") {
		t.Error("expected openai-translate to be not ready")
	}
	if !ht.IsReady("azure-translate") {
		t.Error("expected azure-translate to be unaffected")
	}
}
