package views

import (
	"github.com/wolfman30/booking-console/internal/observability/metrics"
	"github.com/wolfman30/booking-console/internal/session"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Card is one metric tile on the analytics page.
type Card struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Value string `json:"value"`
	Trend string `json:"trend"`
}

// Activity is one line of the recent activity feed.
type Activity struct {
	Text string `json:"text"`
	When string `json:"when"`
}

// AnalyticsView is the analytics page. The figures are mocked; only the
// console activity block is real.
type AnalyticsView struct {
	Title          string                   `json:"title"`
	Subtitle       string                   `json:"subtitle"`
	Cards          []Card                   `json:"cards"`
	RecentActivity []Activity               `json:"recentActivity"`
	Console        metrics.ActivitySnapshot `json:"console"`
}

// RenderAnalytics builds the metric cards from data (zeros when nil).
func RenderAnalytics(data *session.AnalyticsData, activity metrics.ActivitySnapshot) AnalyticsView {
	var d session.AnalyticsData
	if data != nil {
		d = *data
	}
	return AnalyticsView{
		Title:    "Performance Overview",
		Subtitle: "Key metrics for your chatbot's performance this month",
		Cards: []Card{
			{Key: "total_users", Title: "Total Users", Value: printer.Sprintf("%d", d.TotalUsers), Trend: "+12%"},
			{Key: "weekly_appointments", Title: "Weekly Appointments", Value: printer.Sprintf("%d", d.WeeklyAppointments), Trend: "+8%"},
			{Key: "monthly_revenue", Title: "Monthly Revenue", Value: printer.Sprintf("$%.0f", d.MonthlyRevenue), Trend: "+15%"},
			{Key: "satisfaction_score", Title: "Satisfaction Score", Value: printer.Sprintf("%.1f/5.0", d.SatisfactionScore), Trend: "+0.3"},
			{Key: "response_time", Title: "Avg Response Time", Value: printer.Sprintf("%gs", d.ResponseTime), Trend: "-2s"},
			{Key: "conversations", Title: "Conversations", Value: printer.Sprintf("%d", 1247), Trend: "+18%"},
		},
		RecentActivity: []Activity{
			{Text: "New appointment booked", When: "2 minutes ago"},
			{Text: "User inquiry handled", When: "5 minutes ago"},
			{Text: "Payment processed", When: "12 minutes ago"},
		},
		Console: activity,
	}
}
