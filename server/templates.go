package server

import "html/template"

const indexHTML = `{{define "index.html"}}<!doctype html>
<html>
<head><title>Sincerity analysis</title></head>
<body>
<h1>Upload a video</h1>
<form action="/upload" method="post" enctype="multipart/form-data">
  <p><input type="file" name="file" accept=".mp4,.avi,.mov,.mkv"></p>
  <p><label>OpenAI API key (optional) <input type="password" name="api_key"></label></p>
  <p><input type="submit" value="Analyze"></p>
</form>
</body>
</html>{{end}}`

const resultHTML = `{{define "result.html"}}<!doctype html>
<html>
<head><title>Analysis result</title></head>
<body>
<h1>Analysis result</h1>
{{if .Error}}
<p class="error">Analysis failed: {{.Error}}</p>
{{else}}
<h2>{{if .Passed}}Passed{{else}}Not passed{{end}}</h2>
<h3>Facial expressions</h3>
{{if .Report.Faces}}
<table>
{{range $emotion, $score := .Report.Faces}}<tr><td>{{$emotion}}</td><td>{{printf "%.2f" $score}}</td></tr>
{{end}}</table>
{{else}}<p>No face detected.</p>{{end}}
<h3>Audio</h3>
{{with .Report.Audio}}<p>Energy {{printf "%.4f" .Energy}}, zero-crossing rate {{printf "%.4f" .ZCR}}</p>{{else}}<p>Unavailable.</p>{{end}}
<h3>Transcript</h3>
<p>{{if .Report.Transcript}}{{.Report.Transcript}}{{else}}(none){{end}}</p>
{{with .Report.Tone}}<p>Tone: {{.Label}} ({{printf "%.2f" .Compound}})</p>{{end}}
<h3>Honesty</h3>
<p>{{.Report.Honesty}}</p>
{{if .Report.Failures}}
<h3>Degraded stages</h3>
<ul>{{range .Report.Failures}}<li>{{.Stage}}: {{.Kind}} ({{.Message}})</li>{{end}}</ul>
{{end}}
{{end}}
<p><a href="/">Analyze another video</a></p>
</body>
</html>{{end}}`

func templates() *template.Template {
	return template.Must(template.Must(template.New("pages").Parse(indexHTML)).Parse(resultHTML))
}
