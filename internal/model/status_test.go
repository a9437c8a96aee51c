package model

import "testing"

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    TaskStatus
		to      TaskStatus
		wantErr bool
	}{
		{"pending to queued", StatusPending, StatusQueued, false},
		{"pending to paused", StatusPending, StatusPaused, false},
		{"pending to cancelled", StatusPending, StatusCancelled, false},
		{"pending to crawling", StatusPending, StatusCrawling, true},
		{"pending to completed", StatusPending, StatusCompleted, true},

		{"queued to crawling", StatusQueued, StatusCrawling, false},
		{"queued to pending", StatusQueued, StatusPending, false},
		{"queued to completed", StatusQueued, StatusCompleted, true},

		{"crawling to downloaded", StatusCrawling, StatusDownloaded, false},
		{"crawling to pending", StatusCrawling, StatusPending, false},
		{"crawling to queued", StatusCrawling, StatusQueued, true},

		{"downloaded to queued_parse", StatusDownloaded, StatusQueuedParse, false},
		{"queued_parse to parsing", StatusQueuedParse, StatusParsing, false},
		{"parsing to completed", StatusParsing, StatusCompleted, false},
		{"parsing to pending", StatusParsing, StatusPending, false},

		{"paused to pending", StatusPaused, StatusPending, false},
		{"paused to cancelled", StatusPaused, StatusCancelled, false},
		{"paused to crawling", StatusPaused, StatusCrawling, true},

		{"failed to pending", StatusFailed, StatusPending, false},
		{"failed to downloaded", StatusFailed, StatusDownloaded, false},
		{"failed to completed", StatusFailed, StatusCompleted, true},

		{"completed to pending", StatusCompleted, StatusPending, false},
		{"completed to crawling", StatusCompleted, StatusCrawling, true},

		{"cancelled to anything", StatusCancelled, StatusPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%v, %v) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
		{StatusPending, false},
		{StatusQueued, false},
		{StatusPaused, false},
	}
	for _, tt := range tests {
		if got := IsTerminal(tt.status); got != tt.want {
			t.Errorf("IsTerminal(%v) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestIsActive(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{StatusQueued, true},
		{StatusCrawling, true},
		{StatusQueuedParse, true},
		{StatusParsing, true},
		{StatusPending, false},
		{StatusPaused, false},
		{StatusCompleted, false},
	}
	for _, tt := range tests {
		if got := IsActive(tt.status); got != tt.want {
			t.Errorf("IsActive(%v) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestIsSchedulable(t *testing.T) {
	if !IsSchedulable(StatusPending) {
		t.Error("expected pending to be schedulable")
	}
	if IsSchedulable(StatusQueued) {
		t.Error("expected queued to not be schedulable")
	}
}

func TestTerminalStatusesMatchesIsTerminal(t *testing.T) {
	for _, s := range TerminalStatuses() {
		if !IsTerminal(s) {
			t.Errorf("TerminalStatuses returned %v, but IsTerminal(%v) is false", s, s)
		}
	}
	if len(TerminalStatuses()) != 3 {
		t.Errorf("expected 3 terminal statuses, got %d", len(TerminalStatuses()))
	}
}

func TestActiveStatusesMatchesIsActive(t *testing.T) {
	for _, s := range ActiveStatuses() {
		if !IsActive(s) {
			t.Errorf("ActiveStatuses returned %v, but IsActive(%v) is false", s, s)
		}
	}
	if len(ActiveStatuses()) != 4 {
		t.Errorf("expected 4 active statuses, got %d", len(ActiveStatuses()))
	}
}
