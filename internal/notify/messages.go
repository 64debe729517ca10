package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// BookingNotice carries the display fields of a booking needed to render
// tenant and landlord messages.
type BookingNotice struct {
	BookingID        string
	PropertyID       string
	PropertyTitle    string
	PropertyAddress  string
	TenantID         string
	TenantName       string
	TenantEmail      string
	TenantPhone      string
	LandlordName     string
	LandlordEmail    string
	LandlordPhone    string
	CheckIn          time.Time
	CheckOut         time.Time
	Guests           int
	TotalPrice       float64
	Status           string
	LandlordResponse string
}

const layout = `<html><body style="font-family: Arial, sans-serif; color: #2f3a2f;">{{template "content" .}}<p>The Wild Welcome Team</p></body></html>`

var templates = map[string]string{
	"welcome": `{{define "content"}}<h2>Welcome to Wild Welcome, {{.Name}}!</h2>
<p>Thank you for joining our community of wildlife photographers and eco-tourists.</p>
<p>You can now search for accommodations near Rwanda's national parks, book your stay and connect with local hosts.</p>{{end}}`,

	"verify": `{{define "content"}}<h2>Confirm your email</h2>
<p>Hi {{.Name}}, please confirm your email address to finish setting up your account.</p>
<p><a href="{{.Link}}" style="background-color: #AFBE8E; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Verify Email</a></p>{{end}}`,

	"reset": `{{define "content"}}<h2>Password Reset Request</h2>
<p>You requested to reset your password. Click the link below to reset it:</p>
<p><a href="{{.Link}}" style="background-color: #AFBE8E; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset Password</a></p>
<p>If you didn't request this, please ignore this email.</p>{{end}}`,

	"booking_tenant": `{{define "content"}}<h2>Booking Request Received</h2>
<p>Hi {{.TenantName}},</p>
<p>Your booking request has been sent to the host. Here are the details:</p>
{{template "details" .}}
<p>We will let you know as soon as the host responds.</p>{{end}}`,

	"booking_landlord": `{{define "content"}}<h2>New Booking Request</h2>
<p>Hi {{.LandlordName}},</p>
<p>{{.TenantName}} would like to stay at your property.</p>
{{template "details" .}}
<p>Open your dashboard to approve or decline the request.</p>{{end}}`,

	"booking_decision": `{{define "content"}}<h2>{{if eq .Status "confirmed"}}Booking Confirmed!{{else}}Booking Declined{{end}}</h2>
<p>Hi {{.TenantName}},</p>
<p>{{if eq .Status "confirmed"}}Your booking has been confirmed by the host.{{else}}Unfortunately the host could not accept your booking.{{end}}</p>
{{template "details" .}}
{{with .LandlordResponse}}<p><strong>Message from your host:</strong> {{.}}</p>{{end}}{{end}}`,
}

const detailsTmpl = `{{define "details"}}<ul>
<li><strong>Property:</strong> {{.PropertyTitle}}</li>
<li><strong>Check-in:</strong> {{date .CheckIn}}</li>
<li><strong>Check-out:</strong> {{date .CheckOut}}</li>
<li><strong>Guests:</strong> {{.Guests}}</li>
<li><strong>Total Price:</strong> ${{price .TotalPrice}}</li>
</ul>{{end}}`

var funcs = template.FuncMap{
	"date":  formatDate,
	"price": formatPrice,
}

var parsed = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(templates))
	for name, body := range templates {
		t := template.Must(template.New(name).Funcs(funcs).Parse(layout))
		template.Must(t.Parse(detailsTmpl))
		out[name] = template.Must(t.Parse(body))
	}
	return out
}()

func render(name string, data any) (string, error) {
	t, ok := parsed[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006")
}

func formatPrice(p float64) string {
	return fmt.Sprintf("%.2f", p)
}

func bookingRequestSMS(n BookingNotice) string {
	return fmt.Sprintf("Wild Welcome: booking request sent for %s, %s to %s, %d guest(s), total $%s. We'll notify you when the host responds.",
		n.PropertyTitle, formatDate(n.CheckIn), formatDate(n.CheckOut), n.Guests, formatPrice(n.TotalPrice))
}

func bookingDecisionSMS(n BookingNotice) string {
	if n.Status == "confirmed" {
		return fmt.Sprintf("Wild Welcome Booking Confirmed! %s, %s to %s, %d guest(s), total $%s.",
			n.PropertyTitle, formatDate(n.CheckIn), formatDate(n.CheckOut), n.Guests, formatPrice(n.TotalPrice))
	}
	return fmt.Sprintf("Wild Welcome: your booking for %s on %s was declined by the host.",
		n.PropertyTitle, formatDate(n.CheckIn))
}
