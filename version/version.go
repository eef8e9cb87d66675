package version

// Version viene sovrascritta in fase di build con -ldflags "-X vnscript-editor/version.Version=..."
var Version = "dev"

// String restituisce la versione dell'editor
func String() string {
	if Version == "" {
		return "dev"
	}
	return Version
}
