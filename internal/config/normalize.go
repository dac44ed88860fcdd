package config

import "strings"

// normalize expands and cleans every path-valued field in place.
func (c *Config) normalize() error {
	var err error
	if c.Paths.Workspace, err = expandPath(c.Paths.Workspace); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.RunDir, err = expandPath(c.Paths.RunDir); err != nil {
		return err
	}
	c.Backend.Command = strings.TrimSpace(c.Backend.Command)

	for i := range c.Sources {
		s := &c.Sources[i]
		s.ID = strings.TrimSpace(s.ID)
		if s.Path, err = expandPath(s.Path); err != nil {
			return err
		}
		if strings.TrimSpace(s.Workspace) != "" {
			if s.Workspace, err = expandPath(s.Workspace); err != nil {
				return err
			}
		} else {
			s.Workspace = ""
		}
	}
	return nil
}
