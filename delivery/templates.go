package delivery

import (
	"fmt"
	"html"
	"time"
)

const verificationEmailHTML = `<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #1f2937; background-color: #f8fafc; margin: 0; padding: 20px; }
.container { padding: 20px; max-width: 600px; margin: 20px auto; background-color: #ffffff; border: 1px solid #e2e8f0; border-radius: 8px; }
.header { font-size: 22px; font-weight: bold; color: #1d4ed8; margin-bottom: 15px; }
.content { padding: 30px; text-align: center; }
.code { font-size: 36px; font-weight: bold; letter-spacing: 8px; color: #1d4ed8; background-color: #f1f5f9; padding: 15px 20px; border-radius: 5px; display: inline-block; margin: 20px 0; }
.footer { margin-top: 20px; font-size: 12px; color: #64748b; text-align: center; }
</style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      <p>%s</p>
      <div class="code">%s</div>
    </div>
    <div class="footer">
      &copy; %d %s
    </div>
  </div>
</body>
</html>`

type message struct {
	Subject string
	Plain   string
	HTML    string
}

func verificationMessage(org, code string, ttl time.Duration, now time.Time) message {
	expiry := "shortly"
	if ttl > 0 {
		expiry = "in " + humanMinutes(ttl)
	}
	lead := fmt.Sprintf("Use the code below to add a school to the %s directory. It expires %s.", org, expiry)
	return message{
		Subject: org + " - Verification Code",
		Plain:   fmt.Sprintf("Your %s verification code is %s. It expires %s.", org, code, expiry),
		HTML: fmt.Sprintf(verificationEmailHTML,
			"Verification Code",
			html.EscapeString(lead),
			html.EscapeString(code),
			now.Year(),
			html.EscapeString(org)),
	}
}

func smsBody(org, code string) string {
	return fmt.Sprintf("Your %s verification code is %s", org, code)
}

func humanMinutes(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
