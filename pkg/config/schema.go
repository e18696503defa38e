package config

const schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "docker": {"type": "string"},
    "kube": {"type": "string"},
    "server": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535}
      }
    },
    "timeoutSeconds": {"type": "integer", "minimum": 1},
    "namespaces": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "git": {"type": "object"},
    "cache": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "ttlSeconds": {"type": "integer", "minimum": 1},
        "memcached": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "addresses": {"type": "array", "items": {"type": "string"}},
            "hostname": {"type": "string"},
            "service": {"type": "string"},
            "timeoutMillis": {"type": "integer", "minimum": 1}
          }
        },
        "redis": {
          "type": "object",
          "additionalProperties": false,
          "required": ["addr"],
          "properties": {
            "addr": {"type": "string", "minLength": 1}
          }
        }
      }
    },
    "events": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "webhook": {"type": "string"}
      }
    },
    "registry": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "rps": {"type": "number", "exclusiveMinimum": 0},
        "burst": {"type": "integer", "minimum": 1},
        "warmSeconds": {"type": "integer", "minimum": 1}
      }
    },
    "pipelines": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "required": ["cluster", "from"],
        "properties": {
          "cluster": {"type": "string", "minLength": 1},
          "namespace": {"type": "string"},
          "cron": {"type": "string"},
          "from": {
            "type": "object",
            "additionalProperties": false,
            "required": ["type"],
            "properties": {
              "type": {"enum": ["image", "cluster"]},
              "expression": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`
