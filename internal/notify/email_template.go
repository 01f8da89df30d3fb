package notify

import "github.com/shanehull/grantwatch/internal/types"

type emailData struct {
	Subject  string
	Category string
	Total    int
	Entries  []types.Candidate
}

const emailHTMLTemplate = `<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="UTF-8">
<title>{{.Subject}}</title>
<style>
  body { margin: 0; padding: 16px; background: #eef1f5; font-family: "Apple SD Gothic Neo", "Malgun Gothic", sans-serif; font-size: 14px; color: #1c2533; }
  .wrap { max-width: 600px; margin: 0 auto; background: #fff; border: 1px solid #d5dbe3; }
  .top { padding: 18px 20px; background: #1f3a5f; color: #fff; }
  .top h1 { margin: 0 0 6px; font-size: 17px; }
  .cat { padding: 2px 8px; border-radius: 3px; background: #2f855a; font-size: 12px; }
  .count { margin-left: 6px; font-size: 12px; opacity: .8; }
  .entry { padding: 14px 20px; border-top: 1px solid #e6e9ee; }
  .entry h2 { margin: 0 0 6px; font-size: 15px; }
  .entry th { padding: 1px 10px 1px 0; text-align: left; font-weight: normal; color: #66707d; white-space: nowrap; }
  .note { margin: 8px 0 0; color: #3b4654; }
  a { color: #1d5fa8; }
</style>
</head>
<body>
<div class="wrap">
  <div class="top">
    <h1>{{.Subject}}</h1>
    <span class="cat">{{.Category}}</span>
    {{if gt .Total (len .Entries)}}<span class="count">총 {{.Total}}건 중 {{len .Entries}}건</span>{{end}}
  </div>
  {{range $i, $e := .Entries}}
  <div class="entry">
    <h2>{{inc $i}}. {{if $e.Title}}{{$e.Title}}{{else}}(제목 없음){{end}}</h2>
    <table>
      <tr><th>기관</th><td>{{orDash $e.Organization}}</td></tr>
      <tr><th>신청기간</th><td>{{orDash $e.ApplicationPeriod}}</td></tr>
      {{if $e.PostedDate}}<tr><th>공고일자</th><td>{{$e.PostedDate}}</td></tr>{{end}}
      {{if $e.Hashtags}}<tr><th>해시태그</th><td>{{$e.Hashtags}}</td></tr>{{end}}
      <tr><th>링크</th><td>{{if $e.Link}}<a href="{{$e.Link}}">{{$e.Link}}</a>{{else}}-{{end}}</td></tr>
    </table>
    {{if $e.Summary}}<p class="note">{{$e.Summary}}</p>{{end}}
  </div>
  {{end}}
</div>
</body>
</html>
`
