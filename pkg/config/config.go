// config is the package containing configuration for promoterd: the
// registry and clusters it talks to, where it listens, and the
// pipelines it runs.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/imdario/mergo"
	"github.com/xeipuuv/gojsonschema"

	"github.com/fluxcd/promoter/pkg/pipeline"
)

type Config struct {
	// Docker is the URL of the image registry pipelines take images
	// from; e.g., `https://registry.example.com`.
	Docker string `json:"docker,omitempty"`
	// Kube is the path of the kubeconfig file. Each context in it is
	// a cluster.
	Kube           string   `json:"kube,omitempty"`
	Server         Server   `json:"server"`
	TimeoutSeconds int      `json:"timeoutSeconds,omitempty"`
	Namespaces     []string `json:"namespaces,omitempty"`
	// Git is accepted for compatibility with older configuration
	// files, and not used.
	Git       map[string]interface{} `json:"git,omitempty"`
	Cache     Cache                  `json:"cache"`
	Events    Events                 `json:"events"`
	Registry  Registry               `json:"registry"`
	Pipelines map[string]Pipeline    `json:"pipelines,omitempty"`
}

type Server struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

type Cache struct {
	TTLSeconds int        `json:"ttlSeconds,omitempty"`
	Memcached  *Memcached `json:"memcached,omitempty"`
	Redis      *Redis     `json:"redis,omitempty"`
}

// Memcached is either a fixed list of addresses, or a hostname and
// service to look up SRV records for.
type Memcached struct {
	Addresses     []string `json:"addresses,omitempty"`
	Hostname      string   `json:"hostname,omitempty"`
	Service       string   `json:"service,omitempty"`
	TimeoutMillis int      `json:"timeoutMillis,omitempty"`
}

type Redis struct {
	Addr string `json:"addr"`
}

type Events struct {
	Webhook string `json:"webhook,omitempty"`
}

type Registry struct {
	RPS         float64 `json:"rps,omitempty"`
	Burst       int     `json:"burst,omitempty"`
	WarmSeconds int     `json:"warmSeconds,omitempty"`
}

type Pipeline struct {
	Cluster   string          `json:"cluster"`
	Namespace string          `json:"namespace,omitempty"`
	Cron      string          `json:"cron,omitempty"`
	From      pipeline.Source `json:"from"`
}

var defaults = Config{
	Server:         Server{Host: "0.0.0.0", Port: 3030},
	TimeoutSeconds: 30,
	Cache:          Cache{TTLSeconds: 60},
	Registry:       Registry{RPS: 50, Burst: 125, WarmSeconds: 300},
}

// Error is a configuration that can't be used. It is fatal at
// startup.
type Error struct {
	Source   string
	Problems []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

func configError(source string, problems ...string) *Error {
	return &Error{Source: source, Problems: problems}
}

func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, configError(path, err.Error())
	}
	return Parse(path, data)
}

// Parse reads YAML (or JSON) configuration, checks it against the
// schema, and fills in defaults. source names it in errors.
func Parse(source string, data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	jsonBytes, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, configError(source, err.Error())
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(jsonBytes))
	if err != nil {
		return nil, configError(source, err.Error())
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, configError(source, problems...)
	}

	var c Config
	if err := json.Unmarshal(jsonBytes, &c); err != nil {
		return nil, configError(source, err.Error())
	}
	if err := mergo.Merge(&c, defaults); err != nil {
		return nil, configError(source, err.Error())
	}
	if _, err := pipelinesOf(c); err != nil {
		return nil, configError(source, err.Error())
	}
	return &c, nil
}

func pipelinesOf(c Config) ([]pipeline.Description, error) {
	var names []string
	for name := range c.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	var descriptions []pipeline.Description
	for _, name := range names {
		p := c.Pipelines[name]
		d := pipeline.Description{
			Name:      name,
			Cluster:   p.Cluster,
			Namespace: p.Namespace,
			Cron:      p.Cron,
			From:      p.From,
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		descriptions = append(descriptions, d)
	}
	return descriptions, nil
}

// Descriptions gives the configured pipelines, in name order.
func (c Config) Descriptions() []pipeline.Description {
	// Parse has already validated them.
	ds, _ := pipelinesOf(c)
	return ds
}

// Listen is the address to serve the API on.
func (c Config) Listen() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Endpoint is the URL clients use to reach the server.
func (c Config) Endpoint() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c Config) WarmInterval() time.Duration {
	return time.Duration(c.Registry.WarmSeconds) * time.Second
}

func (m Memcached) Timeout() time.Duration {
	if m.TimeoutMillis == 0 {
		return time.Second
	}
	return time.Duration(m.TimeoutMillis) * time.Millisecond
}
