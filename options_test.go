package shm

import "testing"

func TestValidateForCreate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"missing name", Config{Capacity: 4, BlockSize: 32}, false},
		{"missing capacity", Config{Name: "q", BlockSize: 32}, false},
		{"non power of two block size", Config{Name: "q", Capacity: 4, BlockSize: 48}, false},
		{"block size too small", Config{Name: "q", Capacity: 4, BlockSize: 1}, false},
		{"valid", Config{Name: "q", Capacity: 4, BlockSize: 64}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.validateForCreate()
			if c.ok && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !c.ok && err == nil {
				t.Fatalf("expected an error, got none")
			}
		})
	}
}
