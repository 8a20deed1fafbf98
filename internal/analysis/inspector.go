package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// Result 单个文件的检测结论
type Result struct {
	IsMasquerade bool
	RealExt      string // 按文件头判定的真实类型
	DeclaredExt  string // 文件名声明的后缀
	RiskLevel    string // HIGH / MEDIUM / SAFE
	Message      string
}

// TypeInspector 按 magic bytes 核对文件后缀,识破伪装成文档/图片的可执行文件
// 规则表在构造时建好,之后只读
type TypeInspector struct {
	aliases map[string]map[string]bool
}

func NewTypeInspector() *TypeInspector {
	t := &TypeInspector{aliases: make(map[string]map[string]bool)}

	// 合法的"表里不一":容器格式天然对应多种后缀
	t.allow("zip",
		"docx", "docm", "xlsx", "xlsm", "pptx", "pptm",
		"jar", "apk", "odt", "ods", "odp", "whl", "nupkg")
	t.allow("xml", "svg", "html", "htm", "plist", "config")
	t.allow("mp4", "m4v", "mov")
	t.allow("ogg", "ogv", "oga")
	t.allow("exe", "dll", "sys", "scr", "cpl", "ocx")
	t.allow("gz", "gzip", "tgz")
	return t
}

func (t *TypeInspector) allow(realType string, exts ...string) {
	m, ok := t.aliases[realType]
	if !ok {
		m = make(map[string]bool)
		t.aliases[realType] = m
	}
	m[realType] = true
	for _, ext := range exts {
		m[ext] = true
	}
}

// Inspect 读文件头识别真实类型并与声明后缀比对
func (t *TypeInspector) Inspect(filePath string) (*Result, error) {
	rawExt := filepath.Ext(filePath)
	if rawExt == "" {
		// 无后缀文件没有"声明",放行
		return &Result{RiskLevel: "SAFE", Message: "no extension"}, nil
	}
	declared := strings.ToLower(strings.TrimPrefix(rawExt, "."))

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	// 262 字节是 filetype 库建议的匹配长度
	head := make([]byte, 262)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return &Result{RiskLevel: "SAFE", DeclaredExt: declared, Message: "empty file"}, nil
	}

	kind, _ := filetype.Match(head[:n])
	if kind == filetype.Unknown {
		// 纯文本类文件没有 magic bytes,默认信任
		return &Result{RealExt: "unknown", DeclaredExt: declared, RiskLevel: "SAFE"}, nil
	}
	actual := kind.Extension

	if actual == declared || t.aliases[actual][declared] {
		return &Result{RealExt: actual, DeclaredExt: declared, RiskLevel: "SAFE"}, nil
	}

	risk := "MEDIUM"
	if actual == "exe" || actual == "elf" || actual == "dll" {
		risk = "HIGH"
	}
	return &Result{
		IsMasquerade: true,
		RealExt:      actual,
		DeclaredExt:  declared,
		RiskLevel:    risk,
		Message:      fmt.Sprintf("header is '%s' but name declares '%s'", actual, declared),
	}, nil
}
