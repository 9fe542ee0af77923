package render

// Built-in page templates. Deliberately timestamp-free so identical
// contexts always render identical bytes.
var defaultTemplates = map[string]string{
	TemplateGame: `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Game.Title}} - {{.Site.Title}}</title>
<meta name="description" content="{{.Game.Description}}">
<link rel="canonical" href="{{.Canonical}}">
<link rel="manifest" href="/site.webmanifest">
<meta property="og:title" content="{{.Game.Title}}">
<meta property="og:description" content="{{.Game.Description}}">
<meta property="og:type" content="website">
<meta property="og:url" content="{{.Canonical}}">
{{if .Game.HeroImage}}<meta property="og:image" content="{{.Game.HeroImage}}">
{{end}}</head>
<body>
<header><a href="/">{{.Site.Title}}</a></header>
<main>
<article>
<h1>{{.Game.Title}}</h1>
{{if .Game.HeroImage}}<img src="{{.Game.HeroImage}}" alt="{{.Game.Title}}">
{{end}}<div class="player">
<iframe src="{{.Game.EmbedURL}}" title="{{.Game.Title}}" loading="lazy" allowfullscreen></iframe>
</div>
<p>{{.Game.Description}}</p>
<div class="rating" aria-label="rating">
<span class="value">{{printf "%.1f" .Game.RatingValue}}</span>
<span class="count">{{.Game.RatingCount}} ratings</span>
</div>
{{if .Game.Tags}}<ul class="tags">
{{range .Game.Tags}}<li>{{.}}</li>
{{end}}</ul>
{{end}}{{if .Game.BodyHTML}}<section class="body">
{{.Game.BodyHTML}}
</section>
{{end}}</article>
{{if .Related}}<aside class="more-games">
<h2>More games</h2>
<ul>
{{range .Related}}<li><a href="{{.URL}}">{{.Title}}</a></li>
{{end}}</ul>
</aside>
{{end}}</main>
</body>
</html>
`,

	TemplateIndex: `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Site.Title}}</title>
<meta name="description" content="{{.Site.Description}}">
<link rel="canonical" href="{{.Canonical}}">
<link rel="manifest" href="/site.webmanifest">
</head>
<body>
<header><a href="/">{{.Site.Title}}</a></header>
<main>
<h1>{{.Site.Title}}</h1>
<p>{{.Site.Description}}</p>
<ul class="games">
{{range .Games}}<li>
<a href="{{.URL}}">{{if .HeroImage}}<img src="{{.HeroImage}}" alt="{{.Title}}">{{end}}{{.Title}}</a>
</li>
{{end}}</ul>
</main>
</body>
</html>
`,

	TemplateNotFound: `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Page not found - {{.Site.Title}}</title>
<meta name="robots" content="noindex">
</head>
<body>
<main>
<h1>404</h1>
<p>This page does not exist. <a href="/">Back to {{.Site.Title}}</a></p>
</main>
</body>
</html>
`,

	TemplateOffline: `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Offline - {{.Site.Title}}</title>
<meta name="robots" content="noindex">
</head>
<body>
<main>
<h1>You are offline</h1>
<p>Reconnect to keep playing on {{.Site.Title}}.</p>
</main>
</body>
</html>
`,
}
