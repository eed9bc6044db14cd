// Package sysinfo probes RAM and GPU resources and derives inference tuning
// from them.
//
// Linux and macOS are probed; other platforms report zero resources and get
// the conservative CPU tuning.
package sysinfo

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/mfateev/agens/internal/llm"
	"github.com/mfateev/agens/internal/runner"
)

// Info is the detected hardware summary.
type Info struct {
	OS           string
	RAMBytes     uint64
	VRAMMB       uint64
	HasNVIDIA    bool
	AppleSilicon bool
	GPUName      string
}

// RAMGB returns whole gibibytes of RAM.
func (i Info) RAMGB() uint64 { return i.RAMBytes / (1 << 30) }

// Prober supplies the shell and filesystem reads that detection needs.
type Prober interface {
	// Run executes a shell command line and returns its output, or "" on
	// any failure.
	Run(ctx context.Context, command string) string
	// ReadFile returns a file's contents, or "" when unreadable.
	ReadFile(path string) string
}

// ShellProber runs probes through the user's shell.
type ShellProber struct {
	Runner *runner.Runner
}

// Run implements Prober.
func (p ShellProber) Run(ctx context.Context, command string) string {
	res, err := p.Runner.Run(ctx, runner.Invocation{Command: command})
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	return string(res.Output)
}

// ReadFile implements Prober.
func (ShellProber) ReadFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

const nvidiaList = "which nvidia-smi >/dev/null 2>&1 && nvidia-smi -L 2>/dev/null"
const nvidiaMemory = "nvidia-smi --query-gpu=memory.total --format=csv,noheader,nounits 2>/dev/null"
const nvidiaName = "nvidia-smi --query-gpu=name --format=csv,noheader 2>/dev/null"

// Detect probes the current platform.
func Detect(ctx context.Context, p Prober) Info {
	return DetectFor(ctx, p, runtime.GOOS)
}

// DetectFor probes as though running on goos.
func DetectFor(ctx context.Context, p Prober, goos string) Info {
	info := Info{OS: goos}
	switch goos {
	case "linux":
		detectLinux(ctx, p, &info)
	case "darwin":
		detectDarwin(ctx, p, &info)
	}
	return info
}

func detectLinux(ctx context.Context, p Prober, info *Info) {
	for _, line := range strings.Split(p.ReadFile("/proc/meminfo"), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			info.RAMBytes = firstUint(line) * 1024
			break
		}
	}
	detectNVIDIA(ctx, p, info, true)
}

func detectDarwin(ctx context.Context, p Prober, info *Info) {
	if out := strings.TrimSpace(p.Run(ctx, "sysctl -n hw.memsize 2>/dev/null")); out != "" {
		if n, err := strconv.ParseUint(out, 10, 64); err == nil {
			info.RAMBytes = n
		}
	}
	if info.RAMBytes == 0 {
		info.RAMBytes = memoryFromHardwareProfile(p.Run(ctx, "system_profiler SPHardwareDataType 2>/dev/null"))
	}

	arch := p.Run(ctx, "uname -m")
	brand := strings.ToLower(p.Run(ctx, "sysctl -n machdep.cpu.brand_string 2>/dev/null"))
	info.AppleSilicon = strings.Contains(arch, "arm64") || strings.Contains(brand, "apple")

	displays := p.Run(ctx, "system_profiler SPDisplaysDataType 2>/dev/null")
	if i := strings.Index(displays, "VRAM"); i >= 0 {
		tail := displays[i:]
		if len(tail) > 200 {
			tail = tail[:200]
		}
		v := firstUint(tail)
		if strings.Contains(tail, "GB") {
			v *= 1024
		}
		info.VRAMMB = v
	}
	info.GPUName = gpuNameFromDisplays(displays)

	detectNVIDIA(ctx, p, info, false)
}

// detectNVIDIA fills VRAM from nvidia-smi. On macOS it only fills VRAM when
// the display profile had none.
func detectNVIDIA(ctx context.Context, p Prober, info *Info, takeName bool) {
	info.HasNVIDIA = strings.TrimSpace(p.Run(ctx, nvidiaList)) != ""
	if !info.HasNVIDIA {
		return
	}
	if info.VRAMMB == 0 || takeName {
		info.VRAMMB = firstUint(firstLine(p.Run(ctx, nvidiaMemory)))
	}
	if takeName {
		info.GPUName = strings.TrimSpace(firstLine(p.Run(ctx, nvidiaName)))
	}
}

func memoryFromHardwareProfile(profile string) uint64 {
	for _, line := range strings.Split(profile, "\n") {
		low := strings.ToLower(line)
		if !strings.Contains(low, "memory:") && !strings.Contains(low, "メモリ:") {
			continue
		}
		v := firstUint(line)
		switch {
		case v == 0:
			return 0
		case strings.Contains(line, "GB"):
			return v << 30
		case strings.Contains(line, "MB"):
			return v << 20
		}
		return 0
	}
	return 0
}

// gpuNameFromDisplays prefers the "Chipset Model" line, then the first model
// or graphics line that carries a value.
func gpuNameFromDisplays(displays string) string {
	var candidate string
	for _, line := range strings.Split(displays, "\n") {
		low := strings.ToLower(line)
		colon := strings.IndexByte(line, ':')
		if colon < 0 || strings.TrimSpace(line[colon+1:]) == "" {
			continue
		}
		if strings.Contains(low, "chipset model") {
			return strings.TrimSpace(line)
		}
		if candidate == "" && (strings.Contains(low, "model:") || strings.Contains(low, "graphics")) {
			candidate = strings.TrimSpace(line)
		}
	}
	return candidate
}

// firstUint parses the first run of digits in s.
func firstUint(s string) uint64 {
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return 0
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseUint(s[start:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// DecideTuning picks context size, output budget and GPU offload from the
// detected resources. Small-RAM machines are clamped regardless of VRAM.
func DecideTuning(info Info) llm.Tuning {
	t := llm.DefaultTuning()
	switch vram := info.VRAMMB; {
	case vram >= 20000:
		t.Context, t.MaxTokens, t.GPULayers = 8192, 1024, 100
	case vram >= 12000:
		t.Context, t.MaxTokens, t.GPULayers = 6144, 900, 60
	case vram >= 8000:
		t.Context, t.MaxTokens, t.GPULayers = 4096, 768, 45
	case vram >= 4000:
		t.Context, t.MaxTokens, t.GPULayers = 3072, 640, 30
	case info.OS == "darwin" && info.AppleSilicon:
		t.Context, t.MaxTokens, t.GPULayers = 3072, 640, 35
	default:
		t.Context, t.MaxTokens, t.GPULayers = 2048, 512, 0
	}

	if info.RAMGB() <= 8 {
		t.Context = min(t.Context, 2048)
		t.MaxTokens = min(t.MaxTokens, 512)
	}
	return t
}

// DefaultUnifiedGPURatio is the share of unified memory assumed usable by
// the GPU on Apple Silicon.
const DefaultUnifiedGPURatio = 0.5

// UnifiedGPUEstimateGB estimates GPU-usable unified memory. Ratios outside
// (0,1) fall back to DefaultUnifiedGPURatio. The estimate is at least 1.
func UnifiedGPUEstimateGB(info Info, ratio float64) uint64 {
	if !(ratio > 0 && ratio < 1) {
		ratio = DefaultUnifiedGPURatio
	}
	est := uint64(float64(info.RAMGB()) * ratio)
	if est < 1 {
		return 1
	}
	return est
}
