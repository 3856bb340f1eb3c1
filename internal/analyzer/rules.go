package analyzer

import "github.com/scantrail/scantrail/internal/scan"

// nameRule matches a known-malicious substring in a file name.
type nameRule struct {
	pattern    string
	weight     int
	severity   scan.ThreatLevel
	confidence int
}

// namePatterns are substrings commonly found in malicious artifact names.
// Matching is case-insensitive against the full file name.
var namePatterns = []nameRule{
	{"trojan", 55, scan.LevelMalicious, 85},
	{"backdoor", 55, scan.LevelMalicious, 85},
	{"malware", 55, scan.LevelMalicious, 85},
	{"ransom", 55, scan.LevelMalicious, 85},
	{"rootkit", 55, scan.LevelMalicious, 85},
	{"keylog", 50, scan.LevelMalicious, 80},
	{"stealer", 50, scan.LevelMalicious, 80},
	{"exploit", 45, scan.LevelMalicious, 75},
	{"botnet", 45, scan.LevelMalicious, 75},
	{"cryptominer", 45, scan.LevelMalicious, 75},
	{"virus", 45, scan.LevelMalicious, 70},
	{"dropper", 40, scan.LevelSuspicious, 70},
	{"hacktool", 40, scan.LevelSuspicious, 70},
	{"payload", 35, scan.LevelSuspicious, 60},
}

// riskyExtensions maps directly executable or script extensions to a risk
// weight. Keys are lowercase without the leading dot.
var riskyExtensions = map[string]int{
	"pif": 40,
	"scr": 35,
	"com": 35,
	"hta": 35,
	"exe": 30,
	"ps1": 30,
	"vbs": 30,
	"dll": 25,
	"bat": 25,
	"cmd": 25,
	"jar": 25,
	"msi": 25,
	"apk": 20,
	"sh":  15,
	"js":  15,
}

// documentExtensions are extensions a masquerading executable typically
// claims (double extensions like invoice.pdf.exe).
var documentExtensions = map[string]bool{
	"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "txt": true, "csv": true, "rtf": true,
	"jpg": true, "jpeg": true, "png": true, "gif": true, "odt": true,
}

// documentTypes are declared MIME types that should never carry executable
// content.
var documentTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"text/csv":        true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// Detection category labels.
const (
	CategoryFilename   = "filename-heuristic"
	CategoryExtension  = "extension-risk"
	CategoryMasquerade = "masquerade"
	CategoryContent    = "binary-content"
	CategorySize       = "size-anomaly"
)

// tinyExecutableBytes is the size below which an executable is considered
// anomalously small (stub droppers are typically a few KB).
const tinyExecutableBytes = 4096
