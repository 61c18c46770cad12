package mqtt

import "testing"

func TestTopics(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		got    func(Topics) string
		want   string
	}{
		{"status default prefix", "", Topics.SystemStatus, "devsel/system/status"},
		{"sweep result", "devsel", Topics.SweepResult, "devsel/sweep/result"},
		{"selection", "lab", Topics.Selection, "lab/selection"},
		{"detect command", "site/rack1", Topics.CommandDetect, "site/rack1/command/detect"},
		{"slashes trimmed", "/lab/", Topics.SweepResult, "lab/sweep/result"},
		{"whitespace prefix", "   ", Topics.All, "devsel/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.got(NewTopics(tt.prefix)); got != tt.want {
				t.Errorf("topic = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTopicsZeroValue(t *testing.T) {
	var topics Topics
	if got := topics.SystemStatus(); got != "devsel/system/status" {
		t.Errorf("SystemStatus() = %q, want devsel/system/status", got)
	}
}
