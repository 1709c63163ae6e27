package policy

import (
	"fmt"
	"strings"
)

// fsScheme marks a storage permission URI as a host filesystem path.
const fsScheme = "fs://"

// SecurityArgs renders the hardening portion of the docker invocation:
// no-new-privileges when privileged is explicitly false, then --cap-drop and
// --cap-add pairs in list order. Absent fields emit nothing.
func (d *Document) SecurityArgs() []string {
	var args []string
	if d == nil {
		return args
	}

	if p := d.Spec.Docker.Privileged; p != nil && !*p {
		args = append(args, "--security-opt", "no-new-privileges")
	}

	for _, c := range d.Spec.Docker.Capabilities.Drop {
		args = append(args, "--cap-drop", c)
	}
	for _, c := range d.Spec.Docker.Capabilities.Add {
		args = append(args, "--cap-add", c)
	}

	return args
}

// MountArgs renders bind mounts for storage permissions carrying the fs://
// scheme. Source and target are the same host path; mode is rw only when the
// permission's access set includes write. URIs with other schemes are not
// bind-mountable and are skipped.
func (d *Document) MountArgs() []string {
	var args []string
	if d == nil {
		return args
	}

	for _, perm := range d.Spec.Permissions.Storage.Allow {
		if !strings.HasPrefix(perm.URI, fsScheme) {
			continue
		}
		path := strings.TrimPrefix(perm.URI, fsScheme)
		mode := "ro"
		if perm.CanWrite() {
			mode = "rw"
		}
		args = append(args, "-v", fmt.Sprintf("%s:%s:%s", path, path, mode))
	}

	return args
}

// DockerArgs renders the complete policy-derived argument list: all mount
// pairs first in source order, then all security pairs in source order. The
// ordering is part of the external contract and is byte-identical across
// calls for the same document.
func (d *Document) DockerArgs() []string {
	var args []string
	args = append(args, d.MountArgs()...)
	args = append(args, d.SecurityArgs()...)
	return args
}
