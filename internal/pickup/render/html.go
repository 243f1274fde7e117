package render

import (
	"bytes"
	"encoding/base64"
	"html/template"
)

var stubTemplate = template.Must(template.New("stub").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Document Pickup Stub</title>
<style>
body{font-family:Helvetica,Arial,sans-serif;max-width:560px;margin:24px auto;color:#222}
header{text-align:center;border-bottom:2px solid #333;padding-bottom:8px}
dl{display:grid;grid-template-columns:9em 1fr;gap:4px 12px}
dt{font-weight:bold}
.code{font-family:monospace;font-size:1.6em;text-align:center;border:1px solid #333;padding:8px;margin:16px 0}
.qr{text-align:center}
footer{font-size:.8em;text-align:center;color:#555}
</style>
</head>
<body>
<header>
<h1>{{.School.Name}}</h1>
{{with .School.Address}}<p>{{.}}</p>{{end}}
<h2>Document Pickup Stub</h2>
</header>
<dl>
<dt>Request ID</dt><dd>{{.RequestID}}</dd>
<dt>Student</dt><dd>{{.StudentName}}</dd>
<dt>Document</dt><dd>{{.DocumentName}}</dd>
{{with .Pickup}}<dt>Pickup date</dt><dd>{{.}}</dd>{{end}}
{{with .TimeSlot}}<dt>Time slot</dt><dd>{{.}}</dd>{{end}}
{{with .IssuedAt}}<dt>Issued</dt><dd>{{.}}</dd>{{end}}
{{with .ExpiresAt}}<dt>Valid until</dt><dd>{{.}}</dd>{{end}}
</dl>
<div class="code">{{.Code}}</div>
{{with .QRImage}}<div class="qr"><img alt="Pickup QR code" width="220" height="220" src="{{.}}"></div>{{end}}
<footer>
<p>Present this stub and a valid ID at the {{.School.Office}}{{with .School.OfficeHours}} ({{.}}){{end}}. The stub is personal and may be used once.</p>
{{with .School.ContactPhone}}<p>{{.}}</p>{{end}}
{{with .School.ContactEmail}}<p>{{.}}</p>{{end}}
</footer>
</body>
</html>
`))

type htmlView struct {
	Stub
	QRImage template.URL
}

// HTML renders the stub as a standalone page with the QR inlined.
func HTML(s Stub) ([]byte, error) {
	view := htmlView{Stub: s}
	if len(s.QRPNG) > 0 {
		view.QRImage = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(s.QRPNG))
	}
	var buf bytes.Buffer
	if err := stubTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
