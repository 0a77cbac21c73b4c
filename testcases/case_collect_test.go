package testcases

import (
	"context"
	"strings"
	"testing"
)

// TestCollectBusinessProfile fills the first step and confirms it.
func TestCollectBusinessProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	flow, start := NewTestFlow(t)

	snap, err := flow.Send(ctx, start.ID, "We are Acme Robotics and we work in industrial automation.", nil)
	if err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if !strings.Contains(strings.ToLower(snap.Form["businessName"]), "acme") {
		t.Errorf("expected businessName to mention Acme, got %q", snap.Form["businessName"])
	}
	if snap.Form["industry"] == "" {
		t.Error("expected industry to be filled")
	}
	if snap.Step != "Business Profile" {
		t.Errorf("expected to stay on Business Profile before confirming, got %s", snap.Step)
	}
	t.Logf("first reply: %s", snap.Message)

	snap, err = flow.Send(ctx, start.ID, "Yes, that's correct. Let's continue.", nil)
	if err != nil {
		t.Fatalf("confirmation failed: %v", err)
	}
	if snap.Step != "Project Info" {
		t.Errorf("expected Project Info after confirming, got %s", snap.Step)
	}
	t.Logf("second reply: %s", snap.Message)
}

// TestStaysWithinStep checks that information for a later step is not collected early.
func TestStaysWithinStep(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	flow, start := NewTestFlow(t)

	snap, err := flow.Send(ctx, start.ID, "Our budget is $20k, but first: we are Globex, a logistics company.", nil)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if snap.Form["businessName"] == "" {
		t.Error("expected businessName to be filled")
	}
	if snap.Form["budget"] != "" {
		t.Errorf("budget belongs to a later step, got %q", snap.Form["budget"])
	}
	t.Logf("reply: %s", snap.Message)
}
