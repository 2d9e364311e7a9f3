package main

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/RowanDark/wraith/internal/cipher"
)

// isolate points HOME, the working directory and the state paths at a
// temporary directory so no user configuration leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("WRAITH_HISTORY_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("WRAITH_RECIPE_DIR", filepath.Join(dir, "recipes"))
	t.Setenv("WRAITH_OUTPUT_DIR", filepath.Join(dir, "output"))
	t.Setenv("WRAITH_STATE_DIR", filepath.Join(dir, "updater"))
	t.Chdir(dir)
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "no command", args: nil, code: 2},
		{name: "unknown command", args: []string{"bogus"}, code: 2},
		{name: "history without subcommand", args: []string{"history"}, code: 2},
		{name: "unknown history subcommand", args: []string{"history", "bogus"}, code: 2},
		{name: "recipe without subcommand", args: []string{"recipe"}, code: 2},
		{name: "analyze without image", args: []string{"analyze"}, code: 2},
		{name: "decrypt without key", args: []string{"decrypt", "-"}, code: 2},
		{name: "encode without layers", args: []string{"encode", "text"}, code: 2},
		{name: "bad flag", args: []string{"spiral", "-nope"}, code: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, "", tt.args...); code != tt.code {
				t.Fatalf("exit code = %d, want %d", code, tt.code)
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"-version"}} {
		code, out, _ := runCLI(t, "", args...)
		if code != 0 || strings.TrimSpace(out) != version {
			t.Fatalf("%v: code=%d out=%q", args, code, out)
		}
	}
}

func TestRunSpiral(t *testing.T) {
	code, out, stderr := runCLI(t, "", "spiral", "-w", "3", "-h", "3")
	if code != 0 {
		t.Fatalf("spiral exit %d: %s", code, stderr)
	}
	want := []string{"1,1", "2,1", "2,2", "1,2", "0,2", "0,1", "0,0", "1,0", "2,0"}
	if diff := cmp.Diff(want, strings.Fields(out)); diff != "" {
		t.Fatalf("clockwise spiral mismatch (-want +got):\n%s", diff)
	}

	code, out, _ = runCLI(t, "", "spiral", "-w", "2", "-h", "1", "-start", "0,0", "-direction", "ccw")
	if code != 0 || strings.Join(strings.Fields(out), " ") != "0,0 1,0" {
		t.Fatalf("code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t, "", "spiral", "-w", "0", "-h", "3"); code != 2 {
		t.Fatalf("zero width should be a usage error, got %d", code)
	}
}

func TestRunEncodeDecode(t *testing.T) {
	isolate(t)
	code, encoded, stderr := runCLI(t, "", "encode", "-layers", "rot13,base64", "flag{layered}")
	if code != 0 {
		t.Fatalf("encode exit %d: %s", code, stderr)
	}
	encoded = strings.TrimSpace(encoded)
	want, _ := cipher.Encode([]byte("flag{layered}"), []cipher.Layer{cipher.Rot13, cipher.Base64})
	if encoded != string(want) {
		t.Fatalf("encoded = %q, want %q", encoded, want)
	}

	code, decoded, stderr := runCLI(t, encoded+"\n", "decode", "-", "-layers", "rot13,base64")
	if code != 0 {
		t.Fatalf("decode exit %d: %s", code, stderr)
	}
	if strings.TrimSpace(decoded) != "flag{layered}" {
		t.Fatalf("decoded = %q", decoded)
	}
	if !strings.Contains(stderr, "chain rot13>base64") {
		t.Errorf("chain label missing from %q", stderr)
	}
}

func TestRunEncryptDecrypt(t *testing.T) {
	dir := isolate(t)
	plainPath := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(plainPath, []byte("flag{xor_round_trip}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if code, _, _ := runCLI(t, "", "encrypt", "-key", "k", plainPath); code != 2 {
		t.Fatalf("binary ciphertext to stdout should be refused, got %d", code)
	}
	code, armored, stderr := runCLI(t, "", "encrypt", "-key", "wraith", "-base64", plainPath)
	if code != 0 {
		t.Fatalf("encrypt exit %d: %s", code, stderr)
	}

	code, plain, stderr := runCLI(t, armored, "decrypt", "-key", "wraith", "-method", "xor", "-base64", "-")
	if code != 0 {
		t.Fatalf("decrypt exit %d: %s", code, stderr)
	}
	if strings.TrimSpace(plain) != "flag{xor_round_trip}" {
		t.Fatalf("plaintext = %q", plain)
	}

	aesPath := filepath.Join(dir, "secret.bin")
	if code, _, stderr := runCLI(t, "", "encrypt", "-key", "wraith", "-method", "aes-cbc", "-out", aesPath, plainPath); code != 0 {
		t.Fatalf("aes encrypt exit %d: %s", code, stderr)
	}
	code, plain, stderr = runCLI(t, "", "decrypt", "-key", "wraith", aesPath)
	if code != 0 {
		t.Fatalf("aes decrypt exit %d: %s", code, stderr)
	}
	if strings.TrimSpace(plain) != "flag{xor_round_trip}" || !strings.Contains(stderr, "method aes-cbc") {
		t.Fatalf("auto decrypt: plain=%q stderr=%q", plain, stderr)
	}
}

func TestRunAssemble(t *testing.T) {
	dir := isolate(t)
	code, out, stderr := runCLI(t, "", "assemble", "-frag", "b=World", "-frag", "a=Hello", "-sep", " ")
	if code != 0 || strings.TrimSpace(out) != "Hello World" {
		t.Fatalf("code=%d out=%q stderr=%q", code, out, stderr)
	}

	code, out, _ = runCLI(t, "", "assemble", "Hel", "lo ", "there")
	if code != 0 || strings.TrimSpace(out) != "Hello there" {
		t.Fatalf("literals: code=%d out=%q", code, out)
	}

	fragDir := filepath.Join(dir, "frags")
	if err := os.Mkdir(fragDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, text := range map[string]string{"part1": "flag{", "part2": "dir}"} {
		if err := os.WriteFile(filepath.Join(fragDir, name), []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	code, out, _ = runCLI(t, "", "assemble", "-dir", fragDir, "-order", "part1,part2")
	if code != 0 || strings.TrimSpace(out) != "flag{dir}" {
		t.Fatalf("dir: code=%d out=%q", code, out)
	}

	code, _, stderr = runCLI(t, "", "assemble", "-dir", fragDir, "-order", "part2")
	if code != 2 || !strings.Contains(stderr, "missing part1") {
		t.Fatalf("partial order: code=%d stderr=%q", code, stderr)
	}
	if code, _, _ := runCLI(t, "", "assemble", "-frag", "a=1", "-frag", "a=2"); code != 2 {
		t.Fatalf("duplicate IDs should be rejected, got %d", code)
	}

	xored := base64.StdEncoding.EncodeToString(cipher.XORBytes([]byte("flag{assembled}"), []byte("key")))
	half := len(xored) / 2
	code, out, stderr = runCLI(t, "", "assemble", "-frag", "1="+xored[:half], "-frag", "2="+xored[half:],
		"-key", "key", "-method", "xor", "-base64")
	if code != 0 || strings.TrimSpace(out) != "flag{assembled}" {
		t.Fatalf("decrypting assemble: code=%d out=%q stderr=%q", code, out, stderr)
	}
}

func TestRunRecipeLifecycle(t *testing.T) {
	isolate(t)
	code, out, stderr := runCLI(t, "", "recipe", "save", "double", "-layers", "base64,base64", "-desc", "nested armour", "-tags", "ctf")
	if code != 0 || !strings.Contains(out, "saved recipe double (base64>base64)") {
		t.Fatalf("save: code=%d out=%q stderr=%q", code, out, stderr)
	}
	if code, _, _ := runCLI(t, "", "recipe", "save", "empty"); code != 2 {
		t.Fatalf("recipe without layers should be a usage error, got %d", code)
	}

	code, out, _ = runCLI(t, "", "recipe", "list")
	if code != 0 || !strings.Contains(out, "double") || !strings.Contains(out, "nested armour") {
		t.Fatalf("list: code=%d out=%q", code, out)
	}
	code, out, _ = runCLI(t, "", "recipe", "show", "double")
	if code != 0 || !strings.Contains(out, "- base64") {
		t.Fatalf("show: code=%d out=%q", code, out)
	}

	code, encoded, _ := runCLI(t, "", "encode", "-recipe", "double", "hidden")
	if code != 0 {
		t.Fatalf("encode with recipe exit %d", code)
	}
	code, decoded, _ := runCLI(t, "", "decode", "-recipe", "double", strings.TrimSpace(encoded))
	if code != 0 || strings.TrimSpace(decoded) != "hidden" {
		t.Fatalf("decode with recipe: code=%d out=%q", code, decoded)
	}

	if code, _, _ := runCLI(t, "", "recipe", "delete", "double"); code != 0 {
		t.Fatalf("delete exit %d", code)
	}
	if code, _, _ := runCLI(t, "", "recipe", "show", "double"); code != 2 {
		t.Fatalf("deleted recipe should be gone, got %d", code)
	}
}

// writeStegoPNG hides payload plus a NUL terminator in the red LSBs of a
// 16x16 image, in raster order.
func writeStegoPNG(t *testing.T, path, payload string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	data := append([]byte(payload), 0)
	for i := 0; i < 16*16; i++ {
		r := uint8(0xA0)
		if i < len(data)*8 {
			r |= (data[i/8] >> (7 - uint(i%8))) & 1
		}
		img.SetNRGBA(i%16, i/16, color.NRGBA{R: r, G: 0xA0, B: 0xA0, A: 0xFF})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunAnalyzeAndHistory(t *testing.T) {
	dir := isolate(t)
	config := "analysis:\n  auto_decode: false\n  include_metadata: false\n"
	if err := os.WriteFile(filepath.Join(dir, "wraith.yml"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}
	const secret = "flag{wraith_cli}"
	imgPath := filepath.Join(dir, "ghost.png")
	writeStegoPNG(t, imgPath, base64.StdEncoding.EncodeToString(cipher.XORBytes([]byte(secret), []byte("ghost"))))

	outDir := filepath.Join(dir, "out")
	code, out, stderr := runCLI(t, "", "analyze", imgPath, "-channels", "red", "-directions", "none", "-out", outDir)
	if code != 0 {
		t.Fatalf("analyze exit %d: %s", code, stderr)
	}
	if !strings.Contains(out, "final flag: "+secret) {
		t.Fatalf("final flag missing from output:\n%s", out)
	}
	if !strings.Contains(stderr, `"stage":"decrypt"`) {
		t.Errorf("expected decrypt event on stderr, got:\n%s", stderr)
	}
	flag, err := os.ReadFile(filepath.Join(outDir, "ghost", "final_flag.txt"))
	if err != nil || strings.TrimSpace(string(flag)) != secret {
		t.Fatalf("final_flag.txt = %q, %v", flag, err)
	}

	fields := strings.Fields(strings.SplitN(out, "\n", 2)[0])
	if len(fields) < 2 || fields[0] != "run" {
		t.Fatalf("unexpected first line %q", out)
	}
	id := strings.TrimSuffix(fields[1], ":")

	code, out, _ = runCLI(t, "", "history", "list")
	if code != 0 || !strings.Contains(out, id[:8]) || !strings.Contains(out, secret) {
		t.Fatalf("history list: code=%d out=%q", code, out)
	}
	code, out, _ = runCLI(t, "", "history", "show", id[:8])
	if code != 0 || !strings.Contains(out, `"final_flag": "`+secret+`"`) {
		t.Fatalf("history show: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t, "", "history", "show", "zzzzzzzz"); code != 2 {
		t.Fatalf("unknown run should exit 2, got %d", code)
	}
	if code, _, _ := runCLI(t, "", "history", "delete", id); code != 0 {
		t.Fatalf("history delete exit %d", code)
	}
	code, out, _ = runCLI(t, "", "history", "list")
	if code != 0 || !strings.Contains(out, "no runs recorded") {
		t.Fatalf("history after delete: code=%d out=%q", code, out)
	}
}

func TestRunExtractAndMetadata(t *testing.T) {
	dir := isolate(t)
	imgPath := filepath.Join(dir, "plain.png")
	writeStegoPNG(t, imgPath, "extracted text")

	code, out, stderr := runCLI(t, "", "extract", imgPath, "-channel", "r")
	if code != 0 || strings.TrimSpace(out) != "extracted text" {
		t.Fatalf("extract: code=%d out=%q stderr=%q", code, out, stderr)
	}
	if code, _, _ := runCLI(t, "", "extract", imgPath, "-order", "zigzag"); code != 2 {
		t.Fatalf("unknown order should be a usage error, got %d", code)
	}

	code, out, _ = runCLI(t, "", "metadata", imgPath)
	if code != 0 || !strings.Contains(out, `"dimensions": "16x16"`) {
		t.Fatalf("metadata: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t, "", "metadata", filepath.Join(dir, "missing.png")); code != 1 {
		t.Fatalf("missing image should exit 1, got %d", code)
	}
}

func TestSelfUpdateChannel(t *testing.T) {
	isolate(t)
	code, out, _ := runCLI(t, "", "self-update", "channel")
	if code != 0 || strings.TrimSpace(out) != "stable" {
		t.Fatalf("default channel: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t, "", "self-update", "channel", "BETA"); code != 0 {
		t.Fatalf("set channel exit %d", code)
	}
	code, out, _ = runCLI(t, "", "self-update", "channel")
	if code != 0 || strings.TrimSpace(out) != "beta" {
		t.Fatalf("persisted channel: code=%d out=%q", code, out)
	}
	if code, _, _ := runCLI(t, "", "self-update", "channel", "nightly"); code != 2 {
		t.Fatalf("unknown channel should be a usage error, got %d", code)
	}
}
