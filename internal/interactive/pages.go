package interactive

import (
	"html/template"
	"net/http"
)

// Option is one choice on a selection page.
type Option struct {
	Value string
	Label string
}

// SelectionPage describes a single-choice form.
type SelectionPage struct {
	Title   string
	Prompt  string
	Action  string // Form POST target.
	State   string // Echoed back as the "state" field.
	Options []Option
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
        .container { max-width: 600px; margin: 0 auto; }
        .message { padding: 20px; border-radius: 5px; margin: 20px 0; }
        .success { background-color: #e7f6e7; border: 1px solid #b3e6b3; color: #006600; }
        .error { background-color: #ffe7e7; border: 1px solid #ffb3b3; color: #cc0000; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <div class="message {{.Class}}">
            <p>{{.Message}}</p>
        </div>
    </div>
</body>
</html>`))

var selectTmpl = template.Must(template.New("select").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .container { max-width: 600px; margin: 0 auto; }
        label { display: block; padding: 10px; border: 1px solid #ddd; border-radius: 5px; margin: 8px 0; }
        button { padding: 10px 20px; margin-right: 8px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Prompt}}</p>
        <form method="POST" action="{{.Action}}">
            <input type="hidden" name="state" value="{{.State}}">
            {{range $i, $o := .Options}}
            <label><input type="radio" name="value" value="{{$o.Value}}"{{if eq $i 0}} checked{{end}}> {{$o.Label}}</label>
            {{end}}
            <button type="submit">Confirm</button>
            <button type="submit" name="cancel" value="1">Cancel</button>
        </form>
    </div>
</body>
</html>`))

// setSecurityHeaders sets common security headers for all pages.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'; script-src 'none'; object-src 'none';")
}

// WriteSuccessPage renders a confirmation page.
func WriteSuccessPage(w http.ResponseWriter, title, message string) {
	setSecurityHeaders(w)
	_ = pageTmpl.Execute(w, map[string]string{"Title": title, "Class": "success", "Message": message})
}

// WriteErrorPage renders an error page with status 400.
func WriteErrorPage(w http.ResponseWriter, title string, err error) {
	setSecurityHeaders(w)
	w.WriteHeader(http.StatusBadRequest)
	_ = pageTmpl.Execute(w, map[string]string{"Title": title, "Class": "error", "Message": err.Error()})
}

// WriteSelectionPage renders a single-choice form.
func WriteSelectionPage(w http.ResponseWriter, page SelectionPage) {
	setSecurityHeaders(w)
	_ = selectTmpl.Execute(w, page)
}
