/*
 * clitutor: interactive command-line exercises over a sentinel-delimited shell session
 * Copyright 2019-2026 Daniel Selifonov
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package sentinel

import (
	"bytes"
	"text/template"
)

// dangerousCommands are replaced with refusal stubs in the installed
// startup file so a student cannot escape, remount, or otherwise
// destabilize the sandbox.
var dangerousCommands = []string{"sudo", "su", "chroot", "mount", "umount", "fdisk", "parted"}

// hookTemplate renders the bash startup file sourced into the VM's
// shell. Ordering here is load-bearing: the exit status
// of the previous command must be captured as the very first statement
// of the PROMPT_COMMAND hook, before anything else can clobber $?.
const hookTemplate = `# generated by clitutor -- do not edit
export HOME={{.SandboxRoot}}
unset HISTFILE
export HISTFILE=/dev/null
export HISTSIZE=0
export HISTCONTROL=ignoreboth

{{range .DangerousCommands}}{{.}}() {
    echo "{{.}}: disabled in this sandbox" >&2
    return 1
}
{{end}}

__clitutor_prompt_command() {
    local __clitutor_exit=$?
    printf '\x1f{{.CmdEndPrefix}}:%d:%s\x1f' "$__clitutor_exit" "$PWD"
    PS1='\u@\h:\w\$ '
    printf '\x1f{{.CmdStart}}\x1f'
}
PROMPT_COMMAND=__clitutor_prompt_command
`

type hookData struct {
	SandboxRoot       string
	DangerousCommands []string
	CmdEndPrefix      string
	CmdStart          string
}

// BuildPromptHook renders the bash startup file installed into the VM
// at boot. It is written through the out-of-band filesystem channel
// (internal/channel) rather than typed over serial, so its source text
// never appears in the captured output stream.
func BuildPromptHook() (string, error) {
	tmpl, err := template.New("hook").Parse(hookTemplate)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	data := hookData{
		SandboxRoot:       SandboxRoot,
		DangerousCommands: dangerousCommands,
		CmdEndPrefix:      cmdEndPrefix,
		CmdStart:          CmdStart,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
