package patterns

// DefaultIgnorePatterns lists build outputs, caches, VCS metadata, lockfiles, and
// media that are skipped unless an explicit include pattern names them.
var DefaultIgnorePatterns = []string{
	// Python
	"*.pyc", "*.pyo", "*.pyd", "__pycache__", ".pytest_cache", ".coverage", ".tox", ".nox",
	".mypy_cache", ".ruff_cache", ".hypothesis", "poetry.lock", "Pipfile.lock",
	// JavaScript
	"node_modules", "bower_components", "package-lock.json", "yarn.lock", ".npm", ".yarn",
	".pnpm-store", "bun.lock", "bun.lockb",
	// JVM
	"*.class", "*.jar", "*.war", "*.ear", "*.nar", ".gradle/", "build/", ".settings/", ".classpath",
	"gradle-app.setting", "*.gradle", ".project",
	// Native
	"*.o", "*.obj", "*.dll", "*.dylib", "*.exe", "*.lib", "*.out", "*.a", "*.pdb", "*.bin",
	// Apple
	".build/", "*.xcodeproj/", "*.xcworkspace/", "*.pbxuser", "*.mode1v3", "*.mode2v3",
	"*.perspectivev3", "*.xcuserstate", "xcuserdata/", ".swiftpm/",
	// Ruby
	"*.gem", ".bundle/", "vendor/bundle", "Gemfile.lock", ".ruby-version", ".ruby-gemset", ".rvmrc",
	// Rust
	"Cargo.lock", "**/*.rs.bk", "target/",
	// Go and .NET
	"pkg/", "obj/", "*.suo", "*.user", "*.userosscache", "*.sln.docstates", "*.nupkg", "bin/",
	// Version control
	".git", ".svn", ".hg", ".gitignore", ".gitattributes", ".gitmodules",
	// Media
	"*.svg", "*.png", "*.jpg", "*.jpeg", "*.gif", "*.ico", "*.pdf", "*.mov", "*.mp4", "*.mp3", "*.wav",
	// Environments
	"venv", ".venv", "env", ".env", "virtualenv",
	// Editors
	".idea", ".vscode", ".vs", "*.swo", "*.swn", "*.sublime-*",
	// Temporary
	"*.log", "*.bak", "*.swp", "*.tmp", "*.temp", ".cache", ".sass-cache", ".eslintcache",
	".DS_Store", "Thumbs.db", "desktop.ini",
	// Build output
	"build", "dist", "target", "out", "*.egg-info", "*.egg", "*.whl", "*.so", "site-packages",
	".docusaurus", ".next", ".nuxt",
	// Databases and minified assets
	"*.db", "*.sqlite", "*.sqlite3", "*.min.js", "*.min.css", "*.map", "*.tfstate*",
	"vendor/", "digest.txt",
}

// DefaultIgnorePatternsWithout returns the defaults minus any pattern that also
// appears verbatim in includePatterns.
func DefaultIgnorePatternsWithout(includePatterns []string) []string {
	explicitIncludes := make(map[string]struct{}, len(includePatterns))
	for _, includePattern := range includePatterns {
		explicitIncludes[includePattern] = struct{}{}
	}
	remaining := make([]string, 0, len(DefaultIgnorePatterns))
	for _, defaultPattern := range DefaultIgnorePatterns {
		if _, named := explicitIncludes[defaultPattern]; named {
			continue
		}
		remaining = append(remaining, defaultPattern)
	}
	return remaining
}
