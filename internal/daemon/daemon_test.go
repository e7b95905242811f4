package daemon

import "testing"

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	valid := []string{
		"*/30 * * * *",
		"0 7,19 * * *",
		"@every 30m",
		"@hourly",
		" @every 1h ",
	}
	for _, spec := range valid {
		if err := ValidateSchedule(spec); err != nil {
			t.Fatalf("ValidateSchedule(%q): %v", spec, err)
		}
	}

	invalid := []string{
		"",
		"* * * *",
		"61 * * * *",
		"@every thirty",
		"not a schedule",
	}
	for _, spec := range invalid {
		if err := ValidateSchedule(spec); err == nil {
			t.Fatalf("ValidateSchedule(%q) accepted a bad spec", spec)
		}
	}
}
