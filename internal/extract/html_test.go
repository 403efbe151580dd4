package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		uri      string
		expected string
	}{
		{
			name:     "title tag",
			content:  "<html><head><title>My Document</title></head><body></body></html>",
			uri:      "/doc.html",
			expected: "My Document",
		},
		{
			name:     "title with extra spaces",
			content:  "<title>   Spaced Title   </title>",
			uri:      "/doc.html",
			expected: "Spaced Title",
		},
		{
			name:     "title with HTML entities",
			content:  "<title>Tom &amp; Jerry</title>",
			uri:      "/doc.html",
			expected: "Tom & Jerry",
		},
		{
			name:     "no title - fallback to filename",
			content:  "<html><body>Just content</body></html>",
			uri:      "/my_document.html",
			expected: "my document",
		},
		{
			name:     "empty title - fallback to filename",
			content:  "<title></title><body>Content</body>",
			uri:      "/readme.html",
			expected: "readme",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Title(tc.content, tc.uri))
		})
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple paragraph",
			input:    "<p>Hello World</p>",
			expected: "Hello World",
		},
		{
			name:     "nested tags",
			input:    "<div><p><strong>Bold</strong> text</p></div>",
			expected: "Bold text",
		},
		{
			name:     "script removed",
			input:    "<p>Before</p><script>alert('evil');</script><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "style removed",
			input:    "<style>.foo { color: red; }</style><p>Content</p>",
			expected: "Content",
		},
		{
			name:     "noscript removed",
			input:    "<p>Content</p><noscript>No JS fallback</noscript>",
			expected: "Content",
		},
		{
			name:     "head removed",
			input:    "<head><meta charset='utf-8'><title>Title</title></head><body>Content</body>",
			expected: "Content",
		},
		{
			name:     "br to newline",
			input:    "Line 1<br>Line 2<br/>Line 3",
			expected: "Line 1\nLine 2\nLine 3",
		},
		{
			name:     "block elements create newlines",
			input:    "<div>Block 1</div><div>Block 2</div>",
			expected: "Block 1\nBlock 2",
		},
		{
			name:     "HTML entities decoded",
			input:    "<p>&lt;tag&gt; &amp; &quot;quotes&quot;</p>",
			expected: "<tag> & \"quotes\"",
		},
		{
			name:     "comments removed",
			input:    "<p>Before</p><!-- comment --><p>After</p>",
			expected: "Before\nAfter",
		},
		{
			name:     "list items",
			input:    "<ul><li>Item 1</li><li>Item 2</li></ul>",
			expected: "Item 1\nItem 2",
		},
		{
			name:     "headings",
			input:    "<h1>Title</h1><h2>Subtitle</h2><p>Content</p>",
			expected: "Title\nSubtitle\nContent",
		},
		{
			name:     "links - text preserved",
			input:    `<a href="https://example.com">Click here</a>`,
			expected: "Click here",
		},
		{
			name:     "images removed",
			input:    `<p>See <img src="image.png" alt="Image"> here</p>`,
			expected: "See here",
		},
		{
			name:     "svg removed",
			input:    `<p>Before</p><svg width="100"><circle cx="50"/></svg><p>After</p>`,
			expected: "Before\nAfter",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Text(tc.input))
		})
	}
}

func TestText_FullPage(t *testing.T) {
	page := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>Raft Explained</title>
    <style>body { font-family: Arial; }</style>
</head>
<body>
    <header><h1>Raft Explained</h1></header>
    <main>
        <p>Raft is a consensus algorithm with <strong>leader election</strong>.</p>
        <ul>
            <li>Log replication</li>
            <li>Safety</li>
        </ul>
    </main>
    <script>console.log('tracking');</script>
    <!-- analytics snippet -->
    <footer><p>&copy; 2026 Example Corp</p></footer>
</body>
</html>`

	text := Text(page)
	assert.NotContains(t, text, "<strong>")
	assert.NotContains(t, text, "console.log")
	assert.NotContains(t, text, "font-family")
	assert.NotContains(t, text, "<!--")
	assert.Contains(t, text, "leader election")
	assert.Contains(t, text, "Log replication")
	assert.Contains(t, text, "2026 Example Corp")

	assert.Equal(t, "Raft Explained", Title(page, "/pages/raft.html"))
}

func BenchmarkText(b *testing.B) {
	page := `<html>
<head><title>Test</title><style>body{}</style></head>
<body>
<h1>Heading</h1>
<p>Paragraph with <strong>bold</strong> and <em>italic</em>.</p>
<ul><li>Item 1</li><li>Item 2</li></ul>
<script>alert('test');</script>
</body>
</html>`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Text(page)
	}
}
