package templates

import (
	"fmt"
	"html"
	"strings"
)

// RenderCoverageDigestEmail generates the HTML for the daily coverage gap
// digest sent to the operations inbox. gapLines is one "lat, lon" pair per
// line, already truncated by the caller.
func RenderCoverageDigestEmail(gapCount int, gridKm, radiusKm float64, gapLines string) string {
	escaped := strings.ReplaceAll(html.EscapeString(gapLines), "\n", "<br>")

	headline := "All scanned grid points are covered"
	if gapCount > 0 {
		headline = fmt.Sprintf("%d grid points are outside unit coverage", gapCount)
	}

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Daily Coverage Digest - FloodNet Response</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #0a0a0f; }
    .container { max-width: 600px; margin: 0 auto; background-color: #12121f; }
    .header { background: linear-gradient(135deg, #0ea5e9 0%%, #2563eb 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #e5e7eb; line-height: 1.6; font-size: 15px; }
    .highlight-box { background: rgba(14, 165, 233, 0.1); border: 1px solid rgba(14, 165, 233, 0.3); border-radius: 12px; padding: 20px; margin: 20px 0; }
    .highlight-box h3 { color: #0ea5e9; margin-top: 0; font-size: 16px; }
    .gap-list { font-family: monospace; font-size: 13px; color: #9ca3af; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(255,255,255,0.1); }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Daily Coverage Digest</h1>
    </div>
    <div class="content">
      <p>%s.</p>
      <div class="highlight-box">
        <h3>Scan parameters</h3>
        <p style="margin-bottom: 0;">Grid spacing <strong>%.1f km</strong>, coverage radius <strong>%.1f km</strong>. Only operational units count toward coverage.</p>
      </div>
      <p class="gap-list">%s</p>
    </div>
    <div class="footer">
      <p>&copy; FloodNet Response Operations</p>
    </div>
  </div>
</body>
</html>`, headline, gridKm, radiusKm, escaped)
}

// RenderMaintenanceDueEmail generates the HTML for the maintenance reminder
// listing units whose service window has lapsed.
func RenderMaintenanceDueEmail(unitLines string) string {
	escaped := strings.ReplaceAll(html.EscapeString(unitLines), "\n", "<br>")

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Units Due For Maintenance - FloodNet Response</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #0a0a0f; }
    .container { max-width: 600px; margin: 0 auto; background-color: #12121f; }
    .header { background: linear-gradient(135deg, #f59e0b 0%%, #d97706 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #000; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #e5e7eb; line-height: 1.6; font-size: 15px; }
    .unit-list { font-family: monospace; font-size: 13px; color: #9ca3af; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(255,255,255,0.1); }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Units Due For Maintenance</h1>
    </div>
    <div class="content">
      <p>The following units are past their scheduled maintenance date and should be rotated out of the dispatch pool:</p>
      <p class="unit-list">%s</p>
    </div>
    <div class="footer">
      <p>&copy; FloodNet Response Operations</p>
    </div>
  </div>
</body>
</html>`, escaped)
}
