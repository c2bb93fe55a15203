package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// Keys understood in the legacy credentials file.
const (
	CredentialDCCUser        = "dcc_user"
	CredentialDCCPassword    = "dcc_pw"
	CredentialPrideUser      = "pride_user"
	CredentialPridePassword  = "pride_pw"
	CredentialPrideServer    = "pride_server"
	CredentialPrideDirectory = "pride_directory"
)

// ReadCredentialsFile parses a key=value credentials file such as ~/.anadama_pride.
func ReadCredentialsFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file %s: %w", path, err)
	}
	return values, nil
}

func (c *Config) credentialTargets() map[string]*string {
	return map[string]*string{
		CredentialDCCUser:        &c.OSDF.Username,
		CredentialDCCPassword:    &c.OSDF.Password,
		CredentialPrideUser:      &c.Pride.Username,
		CredentialPridePassword:  &c.Pride.Password,
		CredentialPrideServer:    &c.Pride.Server,
		CredentialPrideDirectory: &c.Pride.Directory,
		"submitter_name":         &c.Project.SubmitterName,
		"submitter_email":        &c.Project.SubmitterEmail,
		"submitter_affiliation":  &c.Project.SubmitterAffiliation,
		"lab_head_name":          &c.Project.LabHeadName,
		"lab_head_email":         &c.Project.LabHeadEmail,
		"lab_head_affiliation":   &c.Project.LabHeadAffiliation,
		"submitter_pride_login":  &c.Project.SubmitterPrideLogin,
		"project_title":          &c.Project.Title,
		"project_description":    &c.Project.Description,
		"keywords":               &c.Project.Keywords,
	}
}
