package report

// Schema is the JSON Schema (Draft 2020-12) for the document written by
// WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/phobologic/testscan/report.schema.json",
  "title": "testscan report",
  "description": "Output schema for testscan --format=json",
  "type": "object",
  "required": ["version", "root", "target", "summary", "files", "dependencies", "bases"],
  "properties": {
    "version": { "type": "string", "description": "Document layout version (semver)" },
    "root": { "type": "string", "description": "Directory the file paths are relative to" },
    "target": { "type": "string", "description": "Dotted base class that marks test classes" },
    "summary": { "$ref": "#/$defs/Summary" },
    "files": { "type": "array", "items": { "$ref": "#/$defs/File" } },
    "dependencies": { "type": "array", "items": { "$ref": "#/$defs/Dependency" } },
    "bases": { "type": "array", "items": { "$ref": "#/$defs/Base" } }
  },
  "$defs": {
    "Summary": {
      "type": "object",
      "required": ["files", "classes", "tests", "disabled", "errors"],
      "properties": {
        "files": { "type": "integer", "minimum": 0 },
        "classes": { "type": "integer", "minimum": 0 },
        "tests": { "type": "integer", "minimum": 0 },
        "disabled": { "type": "integer", "minimum": 0 },
        "errors": { "type": "integer", "minimum": 0 }
      }
    },
    "File": {
      "type": "object",
      "required": ["path", "classes", "disabled"],
      "properties": {
        "path": { "type": "string" },
        "classes": { "type": "array", "items": { "$ref": "#/$defs/Class" } },
        "disabled": { "type": "array", "items": { "type": "string" } },
        "ancestors": { "type": "array", "items": { "$ref": "#/$defs/Ancestor" } },
        "error": { "type": "string", "description": "Why the file could not be scanned" }
      }
    },
    "Class": {
      "type": "object",
      "required": ["name", "methods"],
      "properties": {
        "name": { "type": "string" },
        "methods": { "type": "array", "items": { "$ref": "#/$defs/Method" } }
      }
    },
    "Method": {
      "type": "object",
      "required": ["name", "tags", "requirements"],
      "properties": {
        "name": { "type": "string", "pattern": "^test" },
        "tags": { "type": "array", "items": { "type": "string" } },
        "requirements": { "type": "array", "items": { "type": "string" } }
      }
    },
    "Ancestor": {
      "type": "object",
      "required": ["path", "class"],
      "properties": {
        "path": { "type": "string" },
        "class": { "type": "string" }
      }
    },
    "Dependency": {
      "type": "object",
      "required": ["source", "target", "classes"],
      "properties": {
        "source": { "type": "string" },
        "target": { "type": "string" },
        "classes": { "type": "array", "items": { "type": "string" } }
      }
    },
    "Base": {
      "type": "object",
      "required": ["path", "dependents", "rank"],
      "properties": {
        "path": { "type": "string" },
        "dependents": { "type": "integer", "minimum": 0 },
        "rank": { "type": "number", "minimum": 0 }
      }
    }
  }
}`
