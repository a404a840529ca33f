package config

// SecretMask replaces values of secret fields in dumps and logs.
const SecretMask = "<secret>"

// SecretString holds credentials, such as server access token. Its value is
// masked whenever configuration is serialized.
type SecretString string

func (s SecretString) String() string {
	if len(s) == 0 {
		return ""
	}
	return SecretMask
}

// Reveal returns actual value.
func (s SecretString) Reveal() string {
	return string(s)
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte(`"` + SecretMask + `"`), nil
}

func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return SecretMask, nil
}
