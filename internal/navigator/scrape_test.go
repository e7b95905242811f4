package navigator

import "testing"

func TestAppointmentFromDetails(t *testing.T) {
	t.Parallel()

	texts := []string{
		"ד\"ר לוי",
		"יום שבת 14/03/26",
		"שעה 09:26",
		"מרפאה ראשית",
	}

	date, clock, ok := appointmentFromDetails(texts)
	if !ok {
		t.Fatal("expected both date and clock to be found")
	}
	if date != "14/03/26" {
		t.Fatalf("date = %q", date)
	}
	if clock != "09:26" {
		t.Fatalf("clock = %q", clock)
	}
}

func TestAppointmentFromDetailsMissingLines(t *testing.T) {
	t.Parallel()

	if _, _, ok := appointmentFromDetails([]string{"יום שבת 14/03/26"}); ok {
		t.Fatal("missing clock line must not report ok")
	}
	if _, _, ok := appointmentFromDetails([]string{"שעה 09:26"}); ok {
		t.Fatal("missing date line must not report ok")
	}
	if _, _, ok := appointmentFromDetails(nil); ok {
		t.Fatal("empty details must not report ok")
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"יום שבת 14/03/26", 8, "14/03/26"},
		{"שעה 09:26", 5, "09:26"},
		{"  שעה 09:26  ", 5, "09:26"},
		{"short", 10, "short"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := tail(tt.in, tt.n); got != tt.want {
			t.Fatalf("tail(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
