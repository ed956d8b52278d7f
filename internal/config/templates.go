package config

import (
	"fmt"
	"os"
)

// Template returns a commented starter config.toml.
func Template() string {
	return starterTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(starterTemplate), 0o600)
}

const starterTemplate = `# Input documents and working directories, relative to root.
root = "."
registration_template = "Reg.pv"
authentication_template = "Auth.pv"
library = "FIDO2.pvl"
log_dir = "LOG"
scratch_dir = "TEMP"
result_dir = "Result"

# full | simple (simple assumes no leaked fields)
analyze = "full"
# powerset | prefix
role_lattice = "powerset"
# full | coarse
role_catalog = "full"
# empty runs every phase
phases = []

oracle_binary = "proverif"
oracle_timeout = "30s"
# local | ssh
runner = "local"

# status_addr = "127.0.0.1:9300"
# status_token = "change-me"
cors_origins = ["http://localhost:3000"]

[ssh]
host = ""
port = "22"
user = ""
key_path = ""
# environment variable holding the key passphrase, if the key is encrypted
passphrase_env = ""
known_hosts_path = ""
insecure_ignore_host_key = false
dial_timeout = "10s"
remote_library = ""
`
