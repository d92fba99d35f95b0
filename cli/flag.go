package cli

// StringFlag is a flag taking a text, such as the key of an archived document.
//
// - implements cli.Flag
type StringFlag struct {
	Name     string
	Aliases  []string
	Usage    string
	Required bool
	Value    string
}

// Flag implements cli.Flag.
func (StringFlag) Flag() {}

// PathFlag is a flag naming a file: a document, a database or a settings
// file. An empty value usually selects the standard input or the settings.
//
// - implements cli.Flag
type PathFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    string
}

// Flag implements cli.Flag.
func (PathFlag) Flag() {}

// IntFlag is a flag taking an integer, such as a quota.
//
// - implements cli.Flag
type IntFlag struct {
	Name     string
	Usage    string
	Required bool
	Value    int
}

// Flag implements cli.Flag.
func (IntFlag) Flag() {}

// BoolFlag is a switch.
//
// - implements cli.Flag
type BoolFlag struct {
	Name    string
	Aliases []string
	Usage   string
	Value   bool
}

// Flag implements cli.Flag.
func (BoolFlag) Flag() {}
