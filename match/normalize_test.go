package match

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/pkg/server.go b/pkg/server.go
index 83db48f..bf269f4 100644
--- a/pkg/server.go
+++ b/pkg/server.go
@@ -10,7 +10,7 @@ func serve() {
 	mux := http.NewServeMux()
-	srv := &http.Server{Addr: addr}
+	srv := &http.Server{Addr: addr, Handler: mux}
 	return srv.ListenAndServe()
`

func TestNormalizeDropsPosition(t *testing.T) {
	require := require.New(t)

	// The same hunk applied at a different offset with different context
	// must normalize identically.
	moved := `diff --git a/pkg/server.go b/pkg/server.go
index 1111111..2222222 100644
--- a/pkg/server.go
+++ b/pkg/server.go
@@ -42,7 +42,7 @@ func serve() {
 	// unrelated context drift
-	srv := &http.Server{Addr: addr}
+	srv := &http.Server{Addr: addr, Handler: mux}
 	other()
`

	require.Equal(Normalize([]byte(sampleDiff)), Normalize([]byte(moved)))
}

func TestNormalizeWhitespace(t *testing.T) {
	require := require.New(t)

	reindented := `--- a/pkg/server.go
+++ b/pkg/server.go
@@ -10,7 +10,7 @@ func serve() {
-	srv  :=   &http.Server{Addr: addr}
+	  srv := &http.Server{Addr: addr,   Handler: mux}
`

	plain := `--- a/pkg/server.go
+++ b/pkg/server.go
@@ -1,1 +1,1 @@
-srv := &http.Server{Addr: addr}
+srv := &http.Server{Addr: addr, Handler: mux}
`

	require.Equal(Normalize([]byte(plain)), Normalize([]byte(reindented)))
}

func TestNormalizeCRLF(t *testing.T) {
	require := require.New(t)

	crlf := "--- a/f.txt\r\n+++ b/f.txt\r\n@@ -1 +1 @@\r\n-old\r\n+new\r\n"
	lf := "--- a/f.txt\n+++ b/f.txt\n@@ -1 +1 @@\n-old\n+new\n"
	require.Equal(Normalize([]byte(lf)), Normalize([]byte(crlf)))
}

func TestNormalizeWhitespaceOnlyChange(t *testing.T) {
	require := require.New(t)

	reindent := `--- a/f.go
+++ b/f.go
@@ -1,2 +1,2 @@
-	x := 1
-	y := 2
+    x := 1
+    y := 2
`

	require.Empty(Normalize([]byte(reindent)))
}

func TestNormalizeKeepsReorderedLines(t *testing.T) {
	require := require.New(t)

	// The same lines in a different order is a real change, not a
	// whitespace one.
	reorder := `--- a/f.go
+++ b/f.go
@@ -1,2 +1,2 @@
-alpha
-beta
+beta
+alpha
`

	out := Normalize([]byte(reorder))
	require.NotEmpty(out)
	require.NotEmpty(Sum(out))
}

func TestNormalizeDashRunContentLines(t *testing.T) {
	require := require.New(t)

	// Changed lines whose content starts with -- or ++ render as ---
	// and +++ in the diff; they are hunk content, not file headers.
	diff := `--- a/f.go
+++ b/f.go
@@ -1,2 +1,2 @@
 keep
---flag
+++x
`

	out := string(Normalize([]byte(diff)))
	require.Equal(1, strings.Count(out, "file "))
	require.Contains(out, "file f.go\n")
	require.Contains(out, "---flag\n")
	require.Contains(out, "+++x\n")
}

func TestNormalizeFileOrder(t *testing.T) {
	require := require.New(t)

	ab := `--- a/a.go
+++ b/a.go
@@ -0,0 +1 @@
+alpha
--- a/b.go
+++ b/b.go
@@ -0,0 +1 @@
+beta
`

	ba := `--- a/b.go
+++ b/b.go
@@ -0,0 +1 @@
+beta
--- a/a.go
+++ b/a.go
@@ -0,0 +1 @@
+alpha
`

	require.Equal(Normalize([]byte(ab)), Normalize([]byte(ba)))
}

func TestNormalizeDeletedFile(t *testing.T) {
	require := require.New(t)

	del := `--- a/gone.go
+++ /dev/null
@@ -1 +0,0 @@
-content
`

	out := string(Normalize([]byte(del)))
	require.Contains(out, "file gone.go\n")
	require.Contains(out, "-content\n")
}

func TestNormalizeEmpty(t *testing.T) {
	require.Empty(t, Normalize(nil))
	require.Empty(t, Normalize([]byte{}))
}

func TestTokens(t *testing.T) {
	require := require.New(t)

	msg := `fix overflow in parser

The counter wrapped on 32 bit platforms.

Change-Id: Iabc123def4567890abc123def4567890abc123de
(cherry picked from commit 0123456789abcdef0123456789abcdef01234567)
`

	tokens := Tokens(msg)
	require.Len(tokens, 2)
	require.Contains(tokens, "Iabc123def4567890abc123def4567890abc123de")
	require.Contains(tokens, "0123456789abcdef0123456789abcdef01234567")
}

func TestTokensNone(t *testing.T) {
	require.Empty(t, Tokens("plain message with no trailers\n"))
}

func TestSumStableAndDistinct(t *testing.T) {
	require := require.New(t)

	a := Normalize([]byte(sampleDiff))
	require.Equal(Sum(a), Sum(a))
	require.NotEmpty(Sum(a))
	require.Empty(Sum(nil))

	other := Normalize([]byte("--- a/f\n+++ b/f\n@@ -1 +1 @@\n+different\n"))
	require.NotEqual(Sum(a), Sum(other))
}
