package navigator

import "strings"

// Text markers and CSS-module class names as the portal currently renders
// them. The hashed class names are brittle on purpose: when the portal ships
// a new frontend build, scraping fails loudly at a named phase instead of
// silently reading the wrong element.
const (
	dayMarker  = "יום "
	hourMarker = "שעה "

	loginPasswordLinkText = "כניסה עם סיסמה"
	futureApptsLinkText   = "תורים עתידיים"
	editApptButtonText    = "שינוי תור"
	regularVisitText      = "ביקור רגיל"
	showSlotsText         = "המשך להצגת תורים פנויים"

	apptDetailsClass = "src-components-FutureAppointments-AppointmentInfoDetails-AppointmentInfoDetails__text___ohiP1"
	availDateClass   = "src-containers-NewAppointment-PickType-TimeSelect-TimeSelect__availableForDateTitleTimeSelect___rK4Bf"
	availTimeClass   = "btn-outline-secondary"
)

// appointmentFromDetails scans the appointment-details text blocks for the
// line carrying the date ("dd/mm/yy", last 8 characters) and the line
// carrying the clock ("HH:MM", last 5 characters).
func appointmentFromDetails(texts []string) (date, clock string, ok bool) {
	for _, t := range texts {
		if strings.Contains(t, dayMarker) {
			date = tail(t, 8)
		}
		if strings.Contains(t, hourMarker) {
			clock = tail(t, 5)
		}
	}
	return date, clock, date != "" && clock != ""
}

// tail returns the last n characters of s. Character-wise, not byte-wise: the
// surrounding text is Hebrew.
func tail(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[len(r)-n:])
}
