package capacity

import "testing"

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()
	if c.ChangeoverMin != DefaultChangeoverMin || c.MaxIterations != DefaultMaxIterations {
		t.Fatalf("defaults: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	off := Config{ChangeoverMin: -1}
	off.SetDefaults()
	off.SetDefaults()
	if got := off.Changeover(); got != 0 {
		t.Fatalf("negative changeover should disable the buffer, got %d", got)
	}
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("zero max_iterations accepted")
	}
}
