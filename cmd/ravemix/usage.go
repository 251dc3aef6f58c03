package main

const subcommandUsageTemplate = `Usage:
  {{.UseLine}}
{{if .HasAvailableSubCommands}}  {{.CommandPath}} [command]
{{end}}
{{if .HasAvailableSubCommands}}Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}  {{rpad .Name .NamePadding }} {{.Short}}
{{end}}{{end}}{{end}}
{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}
{{end}}
{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}
{{end}}
{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

const rootUsageTemplate = `Usage:
  ravemix [command] [flags]

{{if .HasAvailableSubCommands}}Library:
{{range .Commands}}{{if (and .IsAvailableCommand (eq .Annotations.group "library"))}}  {{rpad .Name .NamePadding }} {{.Short}}
{{end}}{{end}}
Remote:
{{range .Commands}}{{if (and .IsAvailableCommand (eq .Annotations.group "remote"))}}  {{rpad .Name .NamePadding }} {{.Short}}
{{end}}{{end}}
Other:
{{range .Commands}}{{if (and (or .IsAvailableCommand (eq .Name "help")) (not .Annotations.group))}}  {{rpad .Name .NamePadding }} {{.Short}}
{{end}}{{end}}{{end}}
{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}
{{end}}
{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`
