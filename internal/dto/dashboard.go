package dto

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	Students    StudentsSection    `json:"students"`
	Events      EventsSection      `json:"events"`
	Attendance  AttendanceSection  `json:"attendance"`
	Evaluations EvaluationsSection `json:"evaluations"`
}

// StudentsSection summarises the student roster.
type StudentsSection struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// EventsSection summarises scheduled events.
type EventsSection struct {
	Upcoming int `json:"upcoming"`
	Total    int `json:"total"`
}

// AttendanceSection aggregates RSVP confirmations.
type AttendanceSection struct {
	ConfirmationRate float64              `json:"confirmationRate"`
	ByEvent          []EventConfirmations `json:"byEvent"`
}

// EventConfirmations denotes per-event confirmation counts.
type EventConfirmations struct {
	EventID   string  `json:"eventId"`
	Title     string  `json:"title"`
	Confirmed int     `json:"confirmed"`
	Total     int     `json:"total"`
	Rate      float64 `json:"rate"`
}

// EvaluationsSection summarises recent physical assessments.
type EvaluationsSection struct {
	Last30Days int     `json:"last30Days"`
	AvgWeight  float64 `json:"avgWeight"`
	AvgBodyFat float64 `json:"avgBodyFat"`
}

// StudentDashboardResponse captures the per-student dashboard payload.
type StudentDashboardResponse struct {
	UpcomingEvents  int      `json:"upcomingEvents"`
	ConfirmedEvents int      `json:"confirmedEvents"`
	AssignedPlans   int      `json:"assignedPlans"`
	LatestWeight    *float64 `json:"latestWeight,omitempty"`
	LatestBodyFat   *float64 `json:"latestBodyFat,omitempty"`
}
