package vpn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
)

// Renderer renders a named template with a variable set.
type Renderer interface {
	Render(name string, vars map[string]any) (string, error)
}

// OpenVPNGenerator renders OpenVPN client configurations into the cache.
type OpenVPNGenerator struct {
	renderer Renderer
	template string
	cache    *Cache
	log      log.Interface
}

func NewOpenVPNGenerator(renderer Renderer, templateName string, cache *Cache, logger log.Interface) *OpenVPNGenerator {
	if logger == nil {
		logger = log.Log
	}
	return &OpenVPNGenerator{
		renderer: renderer,
		template: templateName,
		cache:    cache,
		log:      logger,
	}
}

// Generate renders the template for in.Protocol with in.IPList in order and
// overwrites the file at in.CachePath.
func (g *OpenVPNGenerator) Generate(in GenerateInput) (Result, error) {
	g.log.WithField("template", g.template).Info("generating openvpn certificate")

	port, ok := in.Protocol.Port()
	if !ok {
		return Result{}, fmt.Errorf("openvpn cannot carry protocol %q", string(in.Protocol))
	}
	vars := map[string]any{
		"openvpn_protocol": string(in.Protocol),
		"serverlist":       in.IPList,
		"openvpn_ports":    []ProtocolPort{port},
	}
	rendered, err := g.renderer.Render(g.template, vars)
	if err != nil {
		return Result{}, err
	}

	if err := g.cache.EnsureDir(); err != nil {
		return Result{}, fmt.Errorf("create cache directory: %w", err)
	}
	if err := g.cache.Write(in.CachePath, []byte(rendered)); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", in.CachePath, err)
	}
	return Result{Kind: ResultCached, Path: in.CachePath}, nil
}

// ErrInvalidArtifact is returned when a profile is not one this package renders.
var ErrInvalidArtifact = errors.New("invalid openvpn artifact")

// Remote is a single "remote" directive.
type Remote struct {
	Host string
	Port string
}

// Directive is one configuration line outside inline blocks.
type Directive struct {
	Name string
	Args []string
	Line int
}

// Profile is a parsed OpenVPN client configuration.
type Profile struct {
	Protocol     Protocol
	Device       string
	Ports        []string
	Remotes      []Remote
	Directives   []Directive
	InlineBlocks map[string]string
}

// Has reports whether the named directive appears at least once.
func (p *Profile) Has(name string) bool {
	for _, d := range p.Directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

// ParseProfile parses OpenVPN client configuration text. The client, remote and
// dev directives are required; remotes keep their file order and the last proto wins.
func ParseProfile(raw string) (*Profile, error) {
	p := &Profile{InlineBlocks: make(map[string]string)}
	var (
		block     string
		blockBody []string
	)
	for i, text := range strings.Split(raw, "\n") {
		line := i + 1
		text = strings.TrimRight(text, "\r")
		trimmed := strings.TrimSpace(text)

		if block != "" {
			if strings.EqualFold(trimmed, "</"+block+">") {
				p.InlineBlocks[block] = strings.Join(blockBody, "\n")
				block, blockBody = "", nil
				continue
			}
			blockBody = append(blockBody, text)
			continue
		}

		switch {
		case trimmed == "", trimmed[0] == '#', trimmed[0] == ';':
			continue
		case strings.HasPrefix(trimmed, "</"):
			return nil, fmt.Errorf("line %d: unexpected closing block %s", line, trimmed)
		case strings.HasPrefix(trimmed, "<") && strings.HasSuffix(trimmed, ">"):
			name := strings.ToLower(strings.TrimSpace(trimmed[1 : len(trimmed)-1]))
			if name == "" || strings.ContainsAny(name, " \t") {
				return nil, fmt.Errorf("line %d: invalid inline block name", line)
			}
			block = name
			continue
		}

		fields := strings.Fields(trimmed)
		d := Directive{Name: strings.ToLower(fields[0]), Args: fields[1:], Line: line}
		if err := p.apply(d); err != nil {
			return nil, err
		}
		p.Directives = append(p.Directives, d)
	}
	if block != "" {
		return nil, fmt.Errorf("unclosed inline block <%s>", block)
	}

	switch {
	case !p.Has("client"):
		return nil, errors.New("'client' directive is required")
	case len(p.Remotes) == 0:
		return nil, errors.New("'remote' directive is required")
	case p.Device == "":
		return nil, errors.New("'dev' directive is required")
	}
	return p, nil
}

func (p *Profile) apply(d Directive) error {
	switch d.Name {
	case "remote":
		if len(d.Args) == 0 {
			return fmt.Errorf("line %d: 'remote' directive requires a host", d.Line)
		}
		r := Remote{Host: d.Args[0]}
		if len(d.Args) > 1 {
			r.Port = d.Args[1]
		}
		p.Remotes = append(p.Remotes, r)
	case "dev":
		if len(d.Args) > 0 && p.Device == "" {
			p.Device = d.Args[0]
		}
	case "proto":
		if len(d.Args) > 0 {
			p.Protocol = ParseProtocol(d.Args[0])
		}
	case "port":
		if len(d.Args) > 0 {
			p.Ports = append(p.Ports, d.Args[0])
		}
	}
	return nil
}

// VerifyArtifact parses raw and checks it is an artifact this package renders:
// proto is tcp or udp and exactly one port directive carries that protocol's port.
func VerifyArtifact(raw string) (*Profile, error) {
	p, err := ParseProfile(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	port, ok := p.Protocol.Port()
	if !ok {
		return nil, fmt.Errorf("%w: proto %q is not an openvpn protocol", ErrInvalidArtifact, string(p.Protocol))
	}
	if len(p.Ports) != 1 {
		return nil, fmt.Errorf("%w: expected one port directive, found %d", ErrInvalidArtifact, len(p.Ports))
	}
	if p.Ports[0] != strconv.Itoa(int(port)) {
		return nil, fmt.Errorf("%w: port %s does not match %s (%d)", ErrInvalidArtifact, p.Ports[0], p.Protocol, port)
	}
	return p, nil
}
